package postgres

import (
	"context"
	"errors"
	"fmt"

	"auction-bidding/internal/biddingerrors"
	model "auction-bidding/internal/models"
	"auction-bidding/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AuctionRepository is the Postgres implementation of repository.AuctionDB.
// Bid acceptance is serialized per auction by a row lock on the auction.
type AuctionRepository struct {
	pool *pgxpool.Pool
}

var _ repository.AuctionDB = (*AuctionRepository)(nil)

func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

const auctionColumns = `id, seller_id, title, description, starting_price::text, minimum_increment::text,
current_maximum_bid::text, start_time, end_time, created_at`

const bidColumns = `id, auction_id, bidder_id, bidder_display_name, bidder_avatar_url, amount::text, submitted_at`

func (r *AuctionRepository) CreateAuction(ctx context.Context, a model.Auction) error {
	const stmt = `
INSERT INTO auctions (id, seller_id, title, description, starting_price, minimum_increment,
	current_maximum_bid, start_time, end_time, created_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10)`

	_, err := r.exec(ctx, stmt,
		a.AuctionID,
		a.SellerID,
		a.Title,
		a.Description,
		a.StartingPrice.String(),
		a.MinimumIncrement.String(),
		a.CurrentMaximumBid.String(),
		a.StartTime,
		a.EndTime,
		a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create auction %s: %w", a.AuctionID, biddingerrors.ErrAuctionExists)
		}
		if isCheckViolation(err) {
			return fmt.Errorf("create auction %s: %w", a.AuctionID, biddingerrors.ErrInvalidAuction)
		}
		return fmt.Errorf("create auction: %w", err)
	}
	return nil
}

func (r *AuctionRepository) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	a, err := scanAuction(r.queryRow(ctx, query, auctionID))
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// AcceptBid locks the auction row for the length of the transaction, so
// concurrent submissions against one auction are totally ordered while other
// auctions proceed independently.
func (r *AuctionRepository) AcceptBid(ctx context.Context, auctionID string, decide repository.DecideFunc) (model.Bid, error) {
	var accepted model.Bid

	err := withTx(ctx, r.pool, func(txCtx context.Context) error {
		query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1 FOR UPDATE`
		auction, err := scanAuction(r.queryRow(txCtx, query, auctionID))
		if err != nil {
			return fmt.Errorf("lock auction %s: %w", auctionID, err)
		}

		bid, err := decide(auction)
		if err != nil {
			return err
		}

		const insert = `
INSERT INTO bids (id, auction_id, bidder_id, bidder_display_name, bidder_avatar_url, amount, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`
		if _, err := r.exec(txCtx, insert,
			bid.BidID,
			auctionID,
			bid.BidderID,
			bid.BidderDisplayName,
			bid.BidderAvatarURL,
			bid.Amount.String(),
			bid.SubmittedAt,
		); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}

		const update = `UPDATE auctions SET current_maximum_bid = $2::numeric WHERE id = $1`
		if _, err := r.exec(txCtx, update, auctionID, bid.Amount.String()); err != nil {
			return fmt.Errorf("raise current maximum: %w", err)
		}

		accepted = bid
		return nil
	})
	if err != nil {
		return model.Bid{}, err
	}
	return accepted, nil
}

func (r *AuctionRepository) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 ORDER BY seq DESC`
	rows, err := r.query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	bids := []model.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

func (r *AuctionRepository) GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return model.Bid{}, err
	}

	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 ORDER BY amount DESC, seq ASC LIMIT 1`
	b, err := scanBid(r.queryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
		}
		return model.Bid{}, fmt.Errorf("get winning bid: %w", err)
	}
	return b, nil
}

func (r *AuctionRepository) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error) {
	query := `
SELECT ` + auctionColumns + `
FROM auctions a
JOIN (
	SELECT auction_id, MIN(seq) AS first_seq
	FROM bids
	WHERE bidder_id = $1
	GROUP BY auction_id
) b ON b.auction_id = a.id
ORDER BY b.first_seq`

	rows, err := r.query(ctx, query, bidderID)
	if err != nil {
		return nil, fmt.Errorf("get auctions for bidder %s: %w", bidderID, err)
	}
	defer rows.Close()

	var auctions []model.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get auctions for bidder %s: %w", bidderID, err)
	}
	if len(auctions) == 0 {
		return nil, fmt.Errorf("get auctions for bidder %s: %w", bidderID, biddingerrors.ErrBidderNoBids)
	}
	return auctions, nil
}

func scanAuction(row pgx.Row) (model.Auction, error) {
	var (
		a                                  model.Auction
		starting, increment, currentMaxBid string
	)
	err := row.Scan(&a.AuctionID, &a.SellerID, &a.Title, &a.Description,
		&starting, &increment, &currentMaxBid,
		&a.StartTime, &a.EndTime, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Auction{}, biddingerrors.ErrAuctionNotFound
		}
		return model.Auction{}, err
	}

	if a.StartingPrice, err = decimal.NewFromString(starting); err != nil {
		return model.Auction{}, fmt.Errorf("parse starting price: %w", err)
	}
	if a.MinimumIncrement, err = decimal.NewFromString(increment); err != nil {
		return model.Auction{}, fmt.Errorf("parse minimum increment: %w", err)
	}
	if a.CurrentMaximumBid, err = decimal.NewFromString(currentMaxBid); err != nil {
		return model.Auction{}, fmt.Errorf("parse current maximum bid: %w", err)
	}
	a.StartTime = a.StartTime.UTC()
	a.EndTime = a.EndTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func scanBid(row pgx.Row) (model.Bid, error) {
	var (
		b      model.Bid
		amount string
	)
	if err := row.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.BidderDisplayName, &b.BidderAvatarURL,
		&amount, &b.SubmittedAt); err != nil {
		return model.Bid{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Bid{}, fmt.Errorf("parse bid amount: %w", err)
	}
	b.Amount = parsed
	b.SubmittedAt = b.SubmittedAt.UTC()
	return b, nil
}

func (r *AuctionRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *AuctionRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *AuctionRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
