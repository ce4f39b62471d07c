package repository

import (
	"context"
	"errors"
	"time"
	"course_market/internal/domain/enrollment/model"
	"course_market/internal/pkg/errs"
	"course_market/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnrollmentRepository 选课仓库，事务从 ctx 获取
type EnrollmentRepository interface {
	// CreateIfAbsent 依赖 (user_id, course_id) 唯一索引，已存在时返回 false
	CreateIfAbsent(ctx context.Context, e *model.Enrollment) (bool, error)
	FindByUserCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error)
	FindByUserCourseForUpdate(ctx context.Context, userID, courseID string) (*model.Enrollment, error)
	Reactivate(ctx context.Context, id string, source model.EnrollmentSource, orderID *string, at time.Time) error
	UpdateProgress(ctx context.Context, e *model.Enrollment) error
	Touch(ctx context.Context, id string, at time.Time) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Enrollment, int64, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

// CreateIfAbsent 使用 ON CONFLICT DO NOTHING，唯一冲突不会中断外层事务
func (r *enrollmentRepository) CreateIfAbsent(ctx context.Context, e *model.Enrollment) (bool, error) {
	result := database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(e)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *enrollmentRepository) FindByUserCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	return r.find(database.Conn(ctx, r.db), userID, courseID)
}

func (r *enrollmentRepository) FindByUserCourseForUpdate(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	return r.find(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), userID, courseID)
}

func (r *enrollmentRepository) find(tx *gorm.DB, userID, courseID string) (*model.Enrollment, error) {
	var e model.Enrollment
	err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrEnrollmentNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Reactivate 仅对 DROPPED 记录生效
func (r *enrollmentRepository) Reactivate(ctx context.Context, id string, source model.EnrollmentSource, orderID *string, at time.Time) error {
	return database.Conn(ctx, r.db).Model(&model.Enrollment{}).
		Where("id = ? AND status = ?", id, model.EnrollmentDropped).
		Updates(map[string]interface{}{
			"status":      model.EnrollmentActive,
			"source":      source,
			"order_id":    orderID,
			"enrolled_at": at,
			"updated_at":  at,
		}).Error
}

func (r *enrollmentRepository) UpdateProgress(ctx context.Context, e *model.Enrollment) error {
	return database.Conn(ctx, r.db).Model(&model.Enrollment{}).
		Where("id = ?", e.ID).
		Updates(map[string]interface{}{
			"status":              e.Status,
			"progress_percentage": e.ProgressPercentage,
			"completed_at":        e.CompletedAt,
			"last_accessed_at":    e.LastAccessedAt,
		}).Error
}

func (r *enrollmentRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return database.Conn(ctx, r.db).Model(&model.Enrollment{}).
		Where("id = ?", id).
		UpdateColumn("last_accessed_at", at).Error
}

func (r *enrollmentRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Enrollment, int64, error) {
	var (
		list  []model.Enrollment
		total int64
	)
	tx := database.Conn(ctx, r.db).Model(&model.Enrollment{}).Where("user_id = ?", userID)
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.Enrollment{}, 0, nil
	}
	err := tx.Order("enrolled_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
