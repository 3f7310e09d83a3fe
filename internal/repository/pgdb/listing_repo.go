package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const listingColumns = `id, title, condition, price, currency, image, platform, url,
	seller_username, seller_feedback, embedded_at, created_at`

// ListingRepo реализует репозиторий объявлений поверх PostgreSQL.
type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

// Upsert идемпотентно создаёт объявление. Существующая запись не меняется:
// эмбеддинг считается по первой присланной версии объявления.
func (l *ListingRepo) Upsert(ctx context.Context, listing *domain.Listing) (*domain.Listing, error) {
	q := tr.QuerierFromCtx(ctx, l.pool)
	model := converter.ListingToModel(listing)

	query := `
		WITH ins AS (
			INSERT INTO listings (id, title, condition, price, currency, image, platform, url,
				seller_username, seller_feedback)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING
			RETURNING ` + listingColumns + `
		)
		SELECT ` + listingColumns + ` FROM ins
		UNION ALL
		SELECT ` + listingColumns + ` FROM listings
		WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM ins);
	`

	row := q.QueryRow(ctx, query,
		model.ID, model.Title, model.Condition, model.Price, model.Currency, model.Image,
		model.Platform, model.URL, model.SellerUsername, model.SellerFeedback,
	)

	stored, err := scanListing(row)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return converter.ListingToEntity(stored), nil
}

func (l *ListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	q := tr.QuerierFromCtx(ctx, l.pool)

	row := q.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	model, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrListingNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return converter.ListingToEntity(model), nil
}

// GetListingsInfo возвращает карточки объявлений вместе с числом сохранений.
func (l *ListingRepo) GetListingsInfo(ctx context.Context, ids []string) ([]usecase.ListingInfo, error) {
	query := `
		SELECT l.id, l.title, l.condition, l.price, l.currency, l.image, l.platform, l.url,
			(SELECT count(*) FROM saved_items s WHERE s.listing_id = l.id)
		FROM listings l
		WHERE l.id = ANY($1)
	`

	rows, err := l.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ListingInfo, 0, len(ids))
	for rows.Next() {
		var info usecase.ListingInfo
		if err := rows.Scan(
			&info.ID, &info.Title, &info.Condition, &info.Price, &info.Currency,
			&info.Image, &info.Platform, &info.URL, &info.Saves,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, info)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

func (l *ListingRepo) MarkEmbedded(ctx context.Context, id string) error {
	q := tr.QuerierFromCtx(ctx, l.pool)

	if _, err := q.Exec(ctx, `UPDATE listings SET embedded_at = now() WHERE id = $1`, id); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}

// ListUnembedded возвращает объявления, для которых ещё не сохранён эмбеддинг (для backfill).
func (l *ListingRepo) ListUnembedded(ctx context.Context, limit int) ([]*domain.Listing, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE embedded_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	var result []*domain.Listing
	for rows.Next() {
		model, err := scanListing(rows)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, converter.ListingToEntity(model))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// MostSaved — объявления с наибольшим числом сохранений, без исключённых.
func (l *ListingRepo) MostSaved(ctx context.Context, exclude []string, limit int) ([]string, error) {
	return l.listIDs(ctx, `
		SELECT s.listing_id
		FROM saved_items s
		WHERE NOT (s.listing_id = ANY($1))
		GROUP BY s.listing_id
		ORDER BY count(*) DESC, max(s.created_at) DESC, s.listing_id
		LIMIT $2
	`, exclude, limit)
}

// MostRecent — самые новые объявления, без исключённых.
func (l *ListingRepo) MostRecent(ctx context.Context, exclude []string, limit int) ([]string, error) {
	return l.listIDs(ctx, `
		SELECT id
		FROM listings
		WHERE NOT (id = ANY($1))
		ORDER BY created_at DESC, id
		LIMIT $2
	`, exclude, limit)
}

func (l *ListingRepo) listIDs(ctx context.Context, query string, exclude []string, limit int) ([]string, error) {
	if exclude == nil {
		exclude = []string{}
	}

	rows, err := l.pool.Query(ctx, query, exclude, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	return ids, nil
}

func scanListing(row pgx.Row) (*converter.ListingModel, error) {
	var m converter.ListingModel
	err := row.Scan(
		&m.ID, &m.Title, &m.Condition, &m.Price, &m.Currency, &m.Image, &m.Platform, &m.URL,
		&m.SellerUsername, &m.SellerFeedback, &m.EmbeddedAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
