package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/tr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

type WardrobeRepo struct {
	pool *pgxpool.Pool
}

func NewWardrobeRepo(pool *pgxpool.Pool) *WardrobeRepo {
	return &WardrobeRepo{pool: pool}
}

// GetOrCreate возвращает гардероб пользователя, создавая его при первом обращении.
func (w *WardrobeRepo) GetOrCreate(ctx context.Context, userID string) (*domain.Wardrobe, error) {
	q := tr.QuerierFromCtx(ctx, w.pool)

	query := `
		WITH ins AS (
			INSERT INTO wardrobes (id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING id, user_id, created_at
		)
		SELECT id, user_id, created_at FROM ins
		UNION ALL
		SELECT id, user_id, created_at FROM wardrobes
		WHERE user_id = $2 AND NOT EXISTS (SELECT 1 FROM ins);
	`

	var wd domain.Wardrobe
	if err := q.QueryRow(ctx, query, uuid.New(), userID).Scan(&wd.ID, &wd.UserID, &wd.CreatedAt); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &wd, nil
}

const clothingItemColumns = `id, wardrobe_id, user_id, image_key, type, description, embedded_at, created_at`

type ClothingItemRepo struct {
	pool *pgxpool.Pool
}

func NewClothingItemRepo(pool *pgxpool.Pool) *ClothingItemRepo {
	return &ClothingItemRepo{pool: pool}
}

func (c *ClothingItemRepo) Create(ctx context.Context, item *domain.ClothingItem) error {
	q := tr.QuerierFromCtx(ctx, c.pool)

	query := `
		INSERT INTO clothing_items (id, wardrobe_id, user_id, image_key, type, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		item.ID, item.WardrobeID, item.UserID, item.ImageKey, string(item.Type), item.Description,
	).Scan(&item.CreatedAt)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (c *ClothingItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClothingItem, error) {
	q := tr.QuerierFromCtx(ctx, c.pool)

	row := q.QueryRow(ctx, `SELECT `+clothingItemColumns+` FROM clothing_items WHERE id = $1`, id)
	model, err := scanClothingItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return converter.ClothingItemToEntity(model), nil
}

func (c *ClothingItemRepo) UpdateCaption(ctx context.Context, id uuid.UUID, caption domain.Caption) error {
	q := tr.QuerierFromCtx(ctx, c.pool)

	tag, err := q.Exec(ctx,
		`UPDATE clothing_items SET type = $2, description = $3 WHERE id = $1`,
		id, string(caption.Type), caption.Description,
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
	}

	return nil
}

func (c *ClothingItemRepo) MarkEmbedded(ctx context.Context, id uuid.UUID) error {
	q := tr.QuerierFromCtx(ctx, c.pool)

	if _, err := q.Exec(ctx, `UPDATE clothing_items SET embedded_at = now() WHERE id = $1`, id); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}

func (c *ClothingItemRepo) ListByUser(ctx context.Context, userID string) ([]*domain.ClothingItem, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT `+clothingItemColumns+` FROM clothing_items WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	var result []*domain.ClothingItem
	for rows.Next() {
		model, err := scanClothingItem(rows)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, converter.ClothingItemToEntity(model))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

func scanClothingItem(row pgx.Row) (*converter.ClothingItemModel, error) {
	var m converter.ClothingItemModel
	if err := row.Scan(
		&m.ID, &m.WardrobeID, &m.UserID, &m.ImageKey, &m.Type, &m.Description, &m.EmbeddedAt, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
