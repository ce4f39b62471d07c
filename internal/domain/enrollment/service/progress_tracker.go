package service

import (
	"context"
	"time"
	courseService "course_market/internal/domain/course/service"
	"course_market/internal/domain/enrollment/model"
	"course_market/internal/domain/enrollment/repository"
	"course_market/internal/pkg/errs"
	"course_market/pkg/database"

	"go.uber.org/zap"
)

// ProgressTracker 学习进度
type ProgressTracker interface {
	InitProgress(ctx context.Context, e *model.Enrollment) error
	CompleteLesson(ctx context.Context, userID, courseID, lessonID string) (*model.Enrollment, error)
	Touch(ctx context.Context, userID, courseID string) error
}

type progressTracker struct {
	enrollments repository.EnrollmentRepository
	progress    repository.ProgressRepository
	courses     courseService.CourseService
	tx          database.TxManager
	logger      *zap.Logger
	now         func() time.Time
}

func NewProgressTracker(
	enrollments repository.EnrollmentRepository,
	progress repository.ProgressRepository,
	courses courseService.CourseService,
	tx database.TxManager,
	logger *zap.Logger,
) ProgressTracker {
	return &progressTracker{
		enrollments: enrollments,
		progress:    progress,
		courses:     courses,
		tx:          tx,
		logger:      logger,
		now:         time.Now,
	}
}

// InitProgress 为课程的每个课时建立进度行，可重复调用
func (t *progressTracker) InitProgress(ctx context.Context, e *model.Enrollment) error {
	lessonIDs, err := t.courses.LessonIDs(ctx, e.CourseID)
	if err != nil {
		return err
	}
	return t.progress.InitLessons(ctx, e.ID, lessonIDs)
}

// CompleteLesson 标记课时完成并重算进度，达到 100 时置为 COMPLETED，之后不再回退
func (t *progressTracker) CompleteLesson(ctx context.Context, userID, courseID, lessonID string) (*model.Enrollment, error) {
	if _, err := t.courses.GetLesson(ctx, courseID, lessonID); err != nil {
		return nil, err
	}
	lessonIDs, err := t.courses.LessonIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var result *model.Enrollment
	err = t.tx.Transaction(ctx, func(ctx context.Context) error {
		e, err := t.enrollments.FindByUserCourseForUpdate(ctx, userID, courseID)
		if err != nil {
			return err
		}
		if !e.Entitled() {
			return errs.ErrEnrollmentNotFound
		}

		now := t.now()
		if err := t.progress.MarkCompleted(ctx, e.ID, lessonID, now); err != nil {
			return err
		}
		completed, err := t.progress.CountCompleted(ctx, e.ID)
		if err != nil {
			return err
		}

		pct := model.Percentage(int(completed), len(lessonIDs))
		if pct > e.ProgressPercentage {
			e.ProgressPercentage = pct
		}
		if e.ProgressPercentage >= 100 && e.Status != model.EnrollmentCompleted {
			e.Status = model.EnrollmentCompleted
			e.CompletedAt = &now
			t.logger.Info("course completed", zap.String("enrollment_id", e.ID), zap.String("user_id", userID))
		}
		e.LastAccessedAt = &now

		if err := t.enrollments.UpdateProgress(ctx, e); err != nil {
			return err
		}
		result = e
		return nil
	})
	return result, err
}

// Touch 更新最近访问时间
func (t *progressTracker) Touch(ctx context.Context, userID, courseID string) error {
	e, err := t.enrollments.FindByUserCourse(ctx, userID, courseID)
	if err != nil {
		return err
	}
	return t.enrollments.Touch(ctx, e.ID, t.now())
}
