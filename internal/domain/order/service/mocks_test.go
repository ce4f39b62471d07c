package service

import (
	"context"
	"time"
	courseModel "course_market/internal/domain/course/model"
	"course_market/internal/domain/order/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock of OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, o *model.Order) error {
	args := m.Called(ctx, o)
	if args.Error(0) == nil && o.ID == "" {
		o.ID = "o-" + o.OrderCode
	}
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByCode(ctx context.Context, code string) (*model.Order, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByCodeForUpdate(ctx context.Context, code string) (*model.Order, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	args := m.Called(ctx, id, status, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, userID string, status model.PaymentStatus, offset, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, status, offset, limit)
	return args.Get(0).([]model.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) CreateTransaction(ctx context.Context, t *model.PaymentTransaction) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockOrderRepository) ListTransactions(ctx context.Context, orderID string) ([]model.PaymentTransaction, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]model.PaymentTransaction), args.Error(1)
}

func (m *MockOrderRepository) SumByStatus(ctx context.Context, orderID string, status model.TransactionStatus) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID, status)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockStatsRepository is a mock of StatsRepository
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) GetStats(ctx context.Context, userID string) (*model.OrderStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderStats), args.Error(1)
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

// MockEnrollmentChecker is a mock of EnrollmentChecker
type MockEnrollmentChecker struct {
	mock.Mock
}

func (m *MockEnrollmentChecker) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	args := m.Called(ctx, userID, courseID)
	return args.Bool(0), args.Error(1)
}
