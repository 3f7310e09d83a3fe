package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
	"github.com/pgvector/pgvector-go"
)

// StyleVectorRepo хранит style-векторы в колонке pgvector с версией для оптимистичной блокировки.
type StyleVectorRepo struct {
	pool *pgxpool.Pool
}

func NewStyleVectorRepo(pool *pgxpool.Pool) *StyleVectorRepo {
	return &StyleVectorRepo{pool: pool}
}

func (s *StyleVectorRepo) Get(ctx context.Context, userID string) (*domain.StyleVector, error) {
	q := tr.QuerierFromCtx(ctx, s.pool)

	var (
		sv  = domain.StyleVector{UserID: userID}
		raw pgtype.Text
	)
	err := q.QueryRow(ctx,
		`SELECT vector::text, version, updated_at FROM style_vectors WHERE user_id = $1`,
		userID,
	).Scan(&raw, &sv.Version, &sv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.ErrNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if raw.Valid {
		var v pgvector.Vector
		if err := v.Scan(raw.String); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		sv.Vector = v.Slice()
	}

	return &sv, nil
}

// CompareAndSwap записывает вектор, если версия не изменилась. expectedVersion == 0 означает первую запись.
func (s *StyleVectorRepo) CompareAndSwap(ctx context.Context, userID string, vector []float32, expectedVersion int64) (int64, error) {
	q := tr.QuerierFromCtx(ctx, s.pool)

	var query string
	if expectedVersion == 0 {
		query = `
			INSERT INTO style_vectors (user_id, vector, version)
			VALUES ($1, $2::vector, 1)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING version
		`
	} else {
		query = `
			UPDATE style_vectors
			SET vector = $2::vector, version = version + 1, updated_at = now()
			WHERE user_id = $1 AND version = $3
			RETURNING version
		`
	}

	args := []any{userID, pgvector.NewVector(vector)}
	if expectedVersion != 0 {
		args = append(args, expectedVersion)
	}

	var version int64
	if err := q.QueryRow(ctx, query, args...).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, e.ErrVersionConflict
		}
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return version, nil
}

// Delete очищает вектор, сохраняя строку: версия продолжает расти и порядок вкладов не ломается.
func (s *StyleVectorRepo) Delete(ctx context.Context, userID string, expectedVersion int64) error {
	q := tr.QuerierFromCtx(ctx, s.pool)

	tag, err := q.Exec(ctx, `
		UPDATE style_vectors
		SET vector = NULL, version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $2
	`, userID, expectedVersion)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.ErrVersionConflict
	}

	return nil
}
