package repository

import (
	"context"
	"time"
	"course_market/internal/domain/notification/model"
	"course_market/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxRepository 发件箱仓库
type OutboxRepository interface {
	// Enqueue 写入调用方事务，重复事件忽略
	Enqueue(ctx context.Context, e *model.OutboxEvent) error
	// ClaimPending 领取到期事件并顺延 available_at 作为租约，多实例不会重复领取
	ClaimPending(ctx context.Context, limit int, lease time.Duration, now time.Time) ([]model.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	// MarkRetry 记录失败并安排下次投递时间
	MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error
	CountPending(ctx context.Context) (int64, error)
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Enqueue(ctx context.Context, e *model.OutboxEvent) error {
	return database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "aggregate_id"}, {Name: "event_type"}},
			DoNothing: true,
		}).
		Create(e).Error
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration, now time.Time) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND available_at <= ?", model.OutboxPending, now).
			Order("available_at").
			Limit(limit).
			Find(&events).Error
		if err != nil || len(events) == 0 {
			return err
		}

		ids := make([]string, len(events))
		for i := range events {
			ids[i] = events[i].ID
		}
		return tx.Model(&model.OutboxEvent{}).
			Where("id IN ?", ids).
			Update("available_at", now.Add(lease)).Error
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *outboxRepository) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	return database.Conn(ctx, r.db).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.OutboxDispatched,
			"dispatched_at": at,
			"last_error":    "",
		}).Error
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error {
	return database.Conn(ctx, r.db).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":     attempts,
			"last_error":   truncate(lastErr, 512),
			"available_at": next,
		}).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	return database.Conn(ctx, r.db).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.OutboxFailed,
			"attempts":   attempts,
			"last_error": truncate(lastErr, 512),
		}).Error
}

func (r *outboxRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).Model(&model.OutboxEvent{}).
		Where("status = ?", model.OutboxPending).
		Count(&n).Error
	return n, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
