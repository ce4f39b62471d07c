package service

import (
	"context"
	"time"
	courseModel "course_market/internal/domain/course/model"
	"course_market/internal/domain/enrollment/model"

	"github.com/stretchr/testify/mock"
)

// MockEnrollmentRepository is a mock of EnrollmentRepository
type MockEnrollmentRepository struct {
	mock.Mock
}

func (m *MockEnrollmentRepository) CreateIfAbsent(ctx context.Context, e *model.Enrollment) (bool, error) {
	args := m.Called(ctx, e)
	return args.Bool(0), args.Error(1)
}

func (m *MockEnrollmentRepository) FindByUserCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	args := m.Called(ctx, userID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Enrollment), args.Error(1)
}

func (m *MockEnrollmentRepository) FindByUserCourseForUpdate(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	args := m.Called(ctx, userID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Enrollment), args.Error(1)
}

func (m *MockEnrollmentRepository) Reactivate(ctx context.Context, id string, source model.EnrollmentSource, orderID *string, at time.Time) error {
	args := m.Called(ctx, id, source, orderID, at)
	return args.Error(0)
}

func (m *MockEnrollmentRepository) UpdateProgress(ctx context.Context, e *model.Enrollment) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEnrollmentRepository) Touch(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockEnrollmentRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Enrollment, int64, error) {
	args := m.Called(ctx, userID, offset, limit)
	return args.Get(0).([]model.Enrollment), args.Get(1).(int64), args.Error(2)
}

// MockProgressRepository is a mock of ProgressRepository
type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) InitLessons(ctx context.Context, enrollmentID string, lessonIDs []string) error {
	args := m.Called(ctx, enrollmentID, lessonIDs)
	return args.Error(0)
}

func (m *MockProgressRepository) MarkCompleted(ctx context.Context, enrollmentID, lessonID string, at time.Time) error {
	args := m.Called(ctx, enrollmentID, lessonID, at)
	return args.Error(0)
}

func (m *MockProgressRepository) CountCompleted(ctx context.Context, enrollmentID string) (int64, error) {
	args := m.Called(ctx, enrollmentID)
	return args.Get(0).(int64), args.Error(1)
}

// MockCourseService is a mock of CourseService
type MockCourseService struct {
	mock.Mock
}

func (m *MockCourseService) GetCourse(ctx context.Context, id string) (*courseModel.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*courseModel.Course), args.Error(1)
}

func (m *MockCourseService) GetCourseForCheckout(ctx context.Context, id string) (*courseModel.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*courseModel.Course), args.Error(1)
}

func (m *MockCourseService) LessonIDs(ctx context.Context, courseID string) ([]string, error) {
	args := m.Called(ctx, courseID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCourseService) GetLesson(ctx context.Context, courseID, lessonID string) (*courseModel.Lesson, error) {
	args := m.Called(ctx, courseID, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*courseModel.Lesson), args.Error(1)
}

func (m *MockCourseService) Invalidate(ctx context.Context, courseID string) error {
	return m.Called(ctx, courseID).Error(0)
}
