package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const contributionColumns = `user_id, item_kind, item_id, seq, active, created_at, updated_at`

// ContributionRepo хранит журнал вкладов вещей в style-вектор пользователя.
type ContributionRepo struct {
	pool *pgxpool.Pool
}

func NewContributionRepo(pool *pgxpool.Pool) *ContributionRepo {
	return &ContributionRepo{pool: pool}
}

func (c *ContributionRepo) Get(ctx context.Context, userID string, item domain.ItemRef) (*domain.StyleContribution, error) {
	q := tr.QuerierFromCtx(ctx, c.pool)

	row := q.QueryRow(ctx, `
		SELECT `+contributionColumns+`
		FROM style_contributions
		WHERE user_id = $1 AND item_kind = $2 AND item_id = $3
	`, userID, string(item.Kind), item.ID)

	model, err := scanContribution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.ErrNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return converter.StyleContributionToEntity(model), nil
}

func (c *ContributionRepo) Upsert(ctx context.Context, contrib *domain.StyleContribution) error {
	q := tr.QuerierFromCtx(ctx, c.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO style_contributions (user_id, item_kind, item_id, seq, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, item_kind, item_id)
		DO UPDATE SET seq = EXCLUDED.seq, active = EXCLUDED.active, updated_at = now()
	`, contrib.UserID, string(contrib.Item.Kind), contrib.Item.ID, contrib.Seq, contrib.Active)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Deactivate возвращает false, если активного вклада не было.
func (c *ContributionRepo) Deactivate(ctx context.Context, userID string, item domain.ItemRef) (bool, error) {
	q := tr.QuerierFromCtx(ctx, c.pool)

	tag, err := q.Exec(ctx, `
		UPDATE style_contributions
		SET active = false, updated_at = now()
		WHERE user_id = $1 AND item_kind = $2 AND item_id = $3 AND active
	`, userID, string(item.Kind), item.ID)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

func (c *ContributionRepo) ListActive(ctx context.Context, userID string) ([]*domain.StyleContribution, error) {
	q := tr.QuerierFromCtx(ctx, c.pool)

	rows, err := q.Query(ctx, `
		SELECT `+contributionColumns+`
		FROM style_contributions
		WHERE user_id = $1 AND active
		ORDER BY seq
	`, userID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	var result []*domain.StyleContribution
	for rows.Next() {
		model, err := scanContribution(rows)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, converter.StyleContributionToEntity(model))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

func scanContribution(row pgx.Row) (*converter.StyleContributionModel, error) {
	var m converter.StyleContributionModel
	if err := row.Scan(&m.UserID, &m.ItemKind, &m.ItemID, &m.Seq, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
