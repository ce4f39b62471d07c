package service

import (
	"context"
	"regexp"
	"testing"
	"time"
	courseModel "course_market/internal/domain/course/model"
	"course_market/internal/domain/order/model"
	"course_market/internal/pkg/errs"
	"course_market/pkg/database"
	"course_market/pkg/database/dbtest"
	"course_market/pkg/metrics"
	"course_market/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orderFixture struct {
	repo        *MockOrderRepository
	stats       *MockStatsRepository
	courses     *MockCourseService
	enrollments *MockEnrollmentChecker
	tx          *dbtest.TxManager
	svc         *orderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		repo:        new(MockOrderRepository),
		stats:       new(MockStatsRepository),
		courses:     new(MockCourseService),
		enrollments: new(MockEnrollmentChecker),
		tx:          &dbtest.TxManager{},
	}
	f.svc = NewOrderService(f.repo, f.stats, f.courses, f.enrollments, f.tx,
		metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop(), "CNY").(*orderService)
	return f
}

func publishedCourse(price, discountPrice string) *courseModel.Course {
	c := &courseModel.Course{Title: "Distributed Systems", Price: decimal.RequireFromString(price), Status: courseModel.CoursePublished}
	c.ID = "c-1"
	if discountPrice != "" {
		c.DiscountPrice = decimal.NewNullDecimal(decimal.RequireFromString(discountPrice))
	}
	return c
}

func TestCreateOrderSnapshotsPrice(t *testing.T) {
	// price 100000, discount 20000 → final 80000
	f := newOrderFixture()
	f.courses.On("GetCourseForCheckout", mock.Anything, "c-1").Return(publishedCourse("100000", "80000"), nil)
	f.enrollments.On("IsEnrolled", mock.Anything, "u-1", "c-1").Return(false, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	order, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID: "u-1", CourseID: "c-1", Gateway: "alipay",
		BillingAddress: &model.BillingAddress{Name: "Lin", City: "Hangzhou"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, order.PaymentStatus)
	assert.Equal(t, model.GatewayAlipay, order.PaymentGateway)
	assert.True(t, order.OriginalPrice.Equal(decimal.NewFromInt(100000)))
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(20000)))
	assert.True(t, order.FinalPrice.Equal(decimal.NewFromInt(80000)))
	assert.True(t, order.FinalPrice.Equal(order.OriginalPrice.Sub(order.DiscountAmount)))
	assert.Equal(t, "CNY", order.Currency)
	assert.Equal(t, "Distributed Systems", order.CourseTitle)
	assert.Contains(t, string(order.BillingAddress), "Hangzhou")
	assert.Regexp(t, regexp.MustCompile(`^\d{14}[0-9a-f]{8}$`), order.OrderCode)
}

func TestCreateOrderRejections(t *testing.T) {
	tests := []struct {
		name     string
		course   *courseModel.Course
		courseEr error
		enrolled bool
		gateway  string
		want     error
	}{
		{name: "course missing", courseEr: errs.ErrCourseNotFound, gateway: "alipay", want: errs.ErrCourseNotFound},
		{name: "course draft", course: &courseModel.Course{Price: decimal.NewFromInt(10), Status: courseModel.CourseDraft}, gateway: "alipay", want: errs.ErrCourseNotPublished},
		{name: "free course", course: publishedCourse("0", ""), gateway: "alipay", want: errs.ErrFreeCourse},
		{name: "discounted to free", course: publishedCourse("99", "0"), gateway: "wechat", want: errs.ErrFreeCourse},
		{name: "already enrolled", course: publishedCourse("99", ""), enrolled: true, gateway: "alipay", want: errs.ErrAlreadyEnrolled},
		{name: "unsupported gateway", course: publishedCourse("99", ""), gateway: "paypal", want: errs.ErrUnsupportedGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			if tt.courseEr != nil {
				f.courses.On("GetCourseForCheckout", mock.Anything, "c-1").Return(nil, tt.courseEr)
			} else {
				f.courses.On("GetCourseForCheckout", mock.Anything, "c-1").Return(tt.course, nil)
			}
			f.enrollments.On("IsEnrolled", mock.Anything, "u-1", "c-1").Return(tt.enrolled, nil)

			_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{UserID: "u-1", CourseID: "c-1", Gateway: tt.gateway})
			assert.ErrorIs(t, err, tt.want)
			f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrderRetriesCodeCollision(t *testing.T) {
	f := newOrderFixture()
	f.courses.On("GetCourseForCheckout", mock.Anything, "c-1").Return(publishedCourse("50", ""), nil)
	f.enrollments.On("IsEnrolled", mock.Anything, "u-1", "c-1").Return(false, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(database.ErrDuplicate).Twice()
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	codes := []string{"A", "B", "C"}
	f.svc.newCode = func(time.Time) (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	order, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{UserID: "u-1", CourseID: "c-1", Gateway: "wechat"})
	require.NoError(t, err)
	assert.Equal(t, "C", order.OrderCode)
	f.repo.AssertNumberOfCalls(t, "Create", 3)
}

func TestCreateOrderGivesUpAfterMaxAttempts(t *testing.T) {
	f := newOrderFixture()
	f.courses.On("GetCourseForCheckout", mock.Anything, "c-1").Return(publishedCourse("50", ""), nil)
	f.enrollments.On("IsEnrolled", mock.Anything, "u-1", "c-1").Return(false, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(database.ErrDuplicate)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{UserID: "u-1", CourseID: "c-1", Gateway: "wechat"})
	assert.ErrorIs(t, err, errs.ErrOrderCodeConflict)
	f.repo.AssertNumberOfCalls(t, "Create", maxOrderCodeAttempts)
}

func pendingOrder() *model.Order {
	o := &model.Order{UserID: "u-1", CourseID: "c-1", PaymentStatus: model.StatusPending, PaymentGateway: model.GatewayAlipay}
	o.ID = "o-1"
	return o
}

func TestCancelOrder(t *testing.T) {
	t.Run("pending order becomes failed", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("GetByIDForUpdate", mock.Anything, "o-1").Return(pendingOrder(), nil)
		f.repo.On("UpdateStatus", mock.Anything, "o-1", model.StatusFailed, (*time.Time)(nil)).Return(true, nil)

		o, err := f.svc.CancelOrder(context.Background(), "o-1", "u-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, o.PaymentStatus)
		assert.Equal(t, 1, f.tx.Calls)
		f.repo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
	})

	t.Run("paid order rejected with 400", func(t *testing.T) {
		f := newOrderFixture()
		paid := pendingOrder()
		paid.PaymentStatus = model.StatusPaid
		f.repo.On("GetByIDForUpdate", mock.Anything, "o-1").Return(paid, nil)

		_, err := f.svc.CancelOrder(context.Background(), "o-1", "u-1")
		assert.ErrorIs(t, err, errs.ErrInvalidOrderState)
		assert.Equal(t, 400, errs.HTTPStatus(err))
		f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("other user rejected", func(t *testing.T) {
		f := newOrderFixture()
		f.repo.On("GetByIDForUpdate", mock.Anything, "o-1").Return(pendingOrder(), nil)

		_, err := f.svc.CancelOrder(context.Background(), "o-1", "u-2")
		assert.ErrorIs(t, err, errs.ErrNotOrderOwner)
		assert.Equal(t, 403, errs.HTTPStatus(err))
	})
}

func TestGetOrderAuthorization(t *testing.T) {
	f := newOrderFixture()
	f.repo.On("GetByID", mock.Anything, "o-1").Return(pendingOrder(), nil)

	_, err := f.svc.GetOrder(context.Background(), "o-1", "u-2", false)
	assert.ErrorIs(t, err, errs.ErrNotOrderOwner)

	o, err := f.svc.GetOrder(context.Background(), "o-1", "admin", true)
	require.NoError(t, err)
	assert.Equal(t, "o-1", o.ID)
}

func TestListOrders(t *testing.T) {
	f := newOrderFixture()
	f.repo.On("List", mock.Anything, "u-1", model.StatusPaid, 0, 10).Return([]model.Order{*pendingOrder()}, int64(1), nil)

	res, err := f.svc.ListOrders(context.Background(), "u-1", "PAID", utils.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	_, err = f.svc.ListOrders(context.Background(), "u-1", "REFUNDED", utils.Pagination{})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)
}

func TestGetOrderStats(t *testing.T) {
	f := newOrderFixture()
	stats := &model.OrderStats{TotalOrders: 3, PaidOrders: 1, TotalSpent: decimal.NewFromInt(80000)}
	f.stats.On("GetStats", mock.Anything, "u-1").Return(stats, nil)

	got, err := f.svc.GetOrderStats(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, stats, got)
}
