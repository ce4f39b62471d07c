package service

import (
	"context"
	"errors"
	"time"
	courseService "course_market/internal/domain/course/service"
	"course_market/internal/domain/enrollment/model"
	"course_market/internal/domain/enrollment/repository"
	"course_market/internal/pkg/errs"
	"course_market/pkg/database"
	"course_market/pkg/utils"

	"go.uber.org/zap"
)

// EnrollmentService 选课服务
type EnrollmentService interface {
	// Activate 幂等地为用户开通课程，付费确认与免费选课共用
	Activate(ctx context.Context, userID, courseID string, source model.EnrollmentSource, orderID *string) (*model.Enrollment, bool, error)
	// EnsureEnrolled 仅在不存在时创建，已有记录（包括 DROPPED）原样返回
	EnsureEnrolled(ctx context.Context, userID, courseID string, source model.EnrollmentSource, orderID *string) (*model.Enrollment, bool, error)
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	EnrollFree(ctx context.Context, userID, courseID string) (*model.Enrollment, error)
	GetEnrollment(ctx context.Context, userID, courseID string) (*model.Enrollment, error)
	ListEnrollments(ctx context.Context, userID string, p utils.Pagination) (*utils.PageResult, error)
}

type enrollmentService struct {
	repo    repository.EnrollmentRepository
	courses courseService.CourseService
	tracker ProgressTracker
	tx      database.TxManager
	logger  *zap.Logger
	now     func() time.Time
}

func NewEnrollmentService(
	repo repository.EnrollmentRepository,
	courses courseService.CourseService,
	tracker ProgressTracker,
	tx database.TxManager,
	logger *zap.Logger,
) EnrollmentService {
	return &enrollmentService{
		repo:    repo,
		courses: courses,
		tracker: tracker,
		tx:      tx,
		logger:  logger,
		now:     time.Now,
	}
}

// Activate 返回值 changed 表示本次调用新建或重新激活了记录
func (s *enrollmentService) Activate(ctx context.Context, userID, courseID string, source model.EnrollmentSource, orderID *string) (*model.Enrollment, bool, error) {
	existing, created, err := s.EnsureEnrolled(ctx, userID, courseID, source, orderID)
	if err != nil || created || existing.Status != model.EnrollmentDropped {
		return existing, created, err
	}

	now := s.now()
	if err := s.repo.Reactivate(ctx, existing.ID, source, orderID, now); err != nil {
		return nil, false, err
	}
	existing.Status = model.EnrollmentActive
	existing.Source = source
	existing.OrderID = orderID
	existing.EnrolledAt = now
	s.logger.Info("enrollment reactivated", zap.String("enrollment_id", existing.ID))
	return existing, true, nil
}

func (s *enrollmentService) EnsureEnrolled(ctx context.Context, userID, courseID string, source model.EnrollmentSource, orderID *string) (*model.Enrollment, bool, error) {
	e := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		Status:     model.EnrollmentActive,
		Source:     source,
		OrderID:    orderID,
		EnrolledAt: s.now(),
	}

	created, err := s.repo.CreateIfAbsent(ctx, e)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("enrollment created",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.String("source", string(source)))
		return e, true, nil
	}

	// 并发或重复确认：读取已存在的记录
	existing, err := s.repo.FindByUserCourseForUpdate(ctx, userID, courseID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *enrollmentService) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	e, err := s.repo.FindByUserCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, errs.ErrEnrollmentNotFound) {
			return false, nil
		}
		return false, err
	}
	return e.Entitled(), nil
}

// EnrollFree 免费课程直接选课，与付费路径共用唯一约束
func (s *enrollmentService) EnrollFree(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	course, err := s.courses.GetCourseForCheckout(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished() {
		return nil, errs.ErrCourseNotPublished
	}
	if !course.IsFree() {
		return nil, errs.ErrPaidCourse
	}

	var result *model.Enrollment
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		e, _, err := s.Activate(ctx, userID, courseID, model.SourceFree, nil)
		if err != nil {
			return err
		}
		if err := s.tracker.InitProgress(ctx, e); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *enrollmentService) GetEnrollment(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	return s.repo.FindByUserCourse(ctx, userID, courseID)
}

func (s *enrollmentService) ListEnrollments(ctx context.Context, userID string, p utils.Pagination) (*utils.PageResult, error) {
	offset, limit := p.GetPageOffset()
	list, total, err := s.repo.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &utils.PageResult{List: list, Total: total, Page: p.Page, Limit: p.Limit}, nil
}
