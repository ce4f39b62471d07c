package repository

import (
	"context"
	"time"
	"course_market/internal/domain/enrollment/model"
	"course_market/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 课时进度仓库
type ProgressRepository interface {
	InitLessons(ctx context.Context, enrollmentID string, lessonIDs []string) error
	MarkCompleted(ctx context.Context, enrollmentID, lessonID string, at time.Time) error
	CountCompleted(ctx context.Context, enrollmentID string) (int64, error)
}

type progressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

// InitLessons 每个课时一行，重复初始化不产生新行
func (r *progressRepository) InitLessons(ctx context.Context, enrollmentID string, lessonIDs []string) error {
	if len(lessonIDs) == 0 {
		return nil
	}
	rows := make([]model.LessonProgress, 0, len(lessonIDs))
	for _, id := range lessonIDs {
		row := model.LessonProgress{EnrollmentID: enrollmentID, LessonID: id}
		row.ID = uuid.NewString()
		rows = append(rows, row)
	}
	return database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "enrollment_id"}, {Name: "lesson_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

// MarkCompleted 已完成的课时保持原完成时间
func (r *progressRepository) MarkCompleted(ctx context.Context, enrollmentID, lessonID string, at time.Time) error {
	row := model.LessonProgress{
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
		Completed:    true,
		CompletedAt:  &at,
	}
	row.ID = uuid.NewString()
	return database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "enrollment_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"completed":    true,
				"completed_at": at,
				"updated_at":   at,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "lesson_progress", Name: "completed"}, Value: false},
			}},
		}).
		Create(&row).Error
}

func (r *progressRepository) CountCompleted(ctx context.Context, enrollmentID string) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).Model(&model.LessonProgress{}).
		Where("enrollment_id = ? AND completed = ?", enrollmentID, true).
		Count(&n).Error
	return n, err
}
