package pgdb

import (
	"context"

	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// PairRepo хранит пары (пользователь, объявление) в таблице liked_items или saved_items.
type PairRepo struct {
	pool  *pgxpool.Pool
	table string
}

func NewLikeRepo(pool *pgxpool.Pool) *PairRepo {
	return &PairRepo{pool: pool, table: "liked_items"}
}

func NewSavedRepo(pool *pgxpool.Pool) *PairRepo {
	return &PairRepo{pool: pool, table: "saved_items"}
}

// Create возвращает false, если пара уже существует.
func (p *PairRepo) Create(ctx context.Context, userID, listingID string) (bool, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	tag, err := q.Exec(ctx,
		`INSERT INTO `+p.table+` (user_id, listing_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, listingID,
	)
	if err != nil {
		if postgresForeignKey(err) {
			return false, e.Wrap(whereami.WhereAmI(), e.ErrListingNotFound)
		}
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

// Delete возвращает false, если пары не было.
func (p *PairRepo) Delete(ctx context.Context, userID, listingID string) (bool, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	tag, err := q.Exec(ctx,
		`DELETE FROM `+p.table+` WHERE user_id = $1 AND listing_id = $2`,
		userID, listingID,
	)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (p *PairRepo) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+p.table+` WHERE user_id = $1 AND listing_id = $2)`,
		userID, listingID,
	).Scan(&exists)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return exists, nil
}

func (p *PairRepo) ListListingIDs(ctx context.Context, userID string) ([]string, error) {
	q := tr.QuerierFromCtx(ctx, p.pool)

	rows, err := q.Query(ctx,
		`SELECT listing_id FROM `+p.table+` WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	return ids, nil
}
