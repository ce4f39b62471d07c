package repository

import (
	"context"
	"errors"
	"course_market/internal/domain/course/model"
	"course_market/internal/pkg/errs"
	"course_market/pkg/database"

	"gorm.io/gorm"
)

// CourseRepository 课程只读仓库
type CourseRepository interface {
	GetByID(ctx context.Context, id string) (*model.Course, error)
	ListLessonIDs(ctx context.Context, courseID string) ([]string, error)
	GetLesson(ctx context.Context, courseID, lessonID string) (*model.Lesson, error)
}

type courseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}

// ListLessonIDs 按课时顺序返回 ID
func (r *courseRepository) ListLessonIDs(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	err := database.Conn(ctx, r.db).Model(&model.Lesson{}).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *courseRepository) GetLesson(ctx context.Context, courseID, lessonID string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := database.Conn(ctx, r.db).
		Where("id = ? AND course_id = ?", lessonID, courseID).
		First(&lesson).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrLessonNotFound
		}
		return nil, err
	}
	return &lesson, nil
}
