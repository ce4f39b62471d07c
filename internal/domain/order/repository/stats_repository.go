package repository

import (
	"context"
	"course_market/internal/domain/order/model"

	"github.com/jmoiron/sqlx"
)

// StatsRepository 订单统计（只读聚合，走 sqlx）
type StatsRepository interface {
	GetStats(ctx context.Context, userID string) (*model.OrderStats, error)
}

type statsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

const statsQuery = `
SELECT
	COUNT(*) AS total_orders,
	COUNT(*) FILTER (WHERE payment_status = 'PAID') AS paid_orders,
	COUNT(*) FILTER (WHERE payment_status = 'PENDING') AS pending_orders,
	COUNT(*) FILTER (WHERE payment_status = 'FAILED') AS failed_orders,
	COALESCE(SUM(final_price) FILTER (WHERE payment_status = 'PAID'), 0) AS total_spent
FROM orders
WHERE user_id = $1`

func (r *statsRepository) GetStats(ctx context.Context, userID string) (*model.OrderStats, error) {
	var stats model.OrderStats
	if err := r.db.GetContext(ctx, &stats, statsQuery, userID); err != nil {
		return nil, err
	}
	return &stats, nil
}
