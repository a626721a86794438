package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bidding "auction-bidding/internal/biddingService"
	"auction-bidding/internal/config"
	"auction-bidding/internal/feed"
	"auction-bidding/internal/repository"
	"auction-bidding/internal/repository/postgres"
	"auction-bidding/internal/server"
	"auction-bidding/migrations"
	"auction-bidding/utils"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Warn("unknown log level, keeping info", map[string]any{"log_level": cfg.LogLevel})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.Fatal("server stopped with error", map[string]any{"error": err.Error()})
	}
	utils.Info("server stopped", nil)
}

func run(ctx context.Context, cfg config.Config) error {
	repo, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := feed.NewHub(feed.WithSubscriberBuffer(cfg.Feed.SubscriberBuffer))
	publisher, closeFeed, err := openFeed(ctx, cfg.Feed, hub)
	if err != nil {
		return err
	}
	defer closeFeed()

	biddingSvc := bidding.NewBiddingService(repo, bidding.WithFeed(hub, publisher))

	if cfg.SeedDemo {
		if err := seedDemoAuctions(ctx, biddingSvc); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := server.SetupRouter(biddingSvc)
	srv := server.NewHTTPServer(cfg.Addr(), router, cfg.Server.CORSOrigins)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.Info("starting auction server", map[string]any{
			"addr":  srv.Addr,
			"store": cfg.Store.Driver,
			"feed":  cfg.Feed.Driver,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		utils.Info("shutting down auction server", nil)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore returns the configured repository and a func releasing it
func openStore(ctx context.Context, cfg config.StoreConfig) (repository.AuctionDB, func(), error) {
	if cfg.Driver != config.StorePostgres {
		return repository.NewMemoryRepo(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	utils.Info("connected to postgres", nil)
	return postgres.NewAuctionRepository(pool), pool.Close, nil
}

// openFeed returns the publisher accepted bids go to. Bus broadcasters relay
// bus traffic back into hub, which is where viewers subscribe.
func openFeed(ctx context.Context, cfg config.FeedConfig, hub *feed.Hub) (feed.Publisher, func(), error) {
	var (
		b   feed.Broadcaster
		err error
	)

	switch cfg.Driver {
	case config.FeedNATS:
		natsCfg := feed.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		b, err = feed.NewNATSBroadcaster(natsCfg, hub)
	case config.FeedRedis:
		b, err = feed.NewRedisBroadcaster(feed.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, hub)
	default:
		return hub, func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if err := b.Start(ctx); err != nil {
		_ = b.Close()
		return nil, nil, fmt.Errorf("start %s feed: %w", cfg.Driver, err)
	}

	closeFeed := func() {
		if err := b.Close(); err != nil {
			utils.Warn("failed to close feed", map[string]any{"driver": cfg.Driver, "error": err.Error()})
		}
	}
	return b, closeFeed, nil
}

// seedDemoAuctions adds sample auctions covering each lifecycle phase
func seedDemoAuctions(ctx context.Context, svc *bidding.BiddingService) error {
	now := svc.Clock().Now()
	demos := []bidding.CreateAuctionInput{
		{
			SellerID: "seller1", Title: "Vintage mechanical keyboard", Description: "Model M, 1989",
			StartingPrice: decimal.NewFromInt(100), MinimumIncrement: decimal.NewFromInt(5),
			StartTime: now.Add(-time.Hour), EndTime: now.Add(24 * time.Hour),
		},
		{
			SellerID: "seller2", Title: "Signed vinyl record", Description: "First pressing",
			StartingPrice: decimal.NewFromInt(200), MinimumIncrement: decimal.RequireFromString("2.50"),
			StartTime: now.Add(time.Hour), EndTime: now.Add(48 * time.Hour),
		},
		{
			SellerID: "seller1", Title: "Retro handheld console", Description: "Boxed, working",
			StartingPrice: decimal.NewFromInt(150), MinimumIncrement: decimal.NewFromInt(1),
			StartTime: now.Add(-time.Minute), EndTime: now.Add(5 * time.Minute),
		},
	}

	for _, in := range demos {
		auction, err := svc.CreateAuction(ctx, in)
		if err != nil {
			return fmt.Errorf("seed auction %q: %w", in.Title, err)
		}
		utils.Info("seeded demo auction", map[string]any{"auction_id": auction.AuctionID, "title": auction.Title})
	}
	return nil
}
