package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
	enrollModel "course_market/internal/domain/enrollment/model"
	notifyModel "course_market/internal/domain/notification/model"
	orderModel "course_market/internal/domain/order/model"
	"course_market/internal/domain/payment/gateway"
	"course_market/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errInjected = errors.New("injected failure")

type memTxKey struct{}

// memStore 内存版订单/选课/发件箱存储，事务失败时整体回滚，
// 全局互斥锁等价于订单行锁
type memStore struct {
	mu            sync.Mutex
	orders        map[string]orderModel.Order
	transactions  []orderModel.PaymentTransaction
	enrollments   map[string]enrollModel.Enrollment
	events        map[string]notifyModel.OutboxEvent
	progressInits int
	failOn        string
}

func newMemStore() *memStore {
	return &memStore{
		orders:      make(map[string]orderModel.Order),
		enrollments: make(map[string]enrollModel.Enrollment),
		events:      make(map[string]notifyModel.OutboxEvent),
	}
}

type memSnapshot struct {
	orders        map[string]orderModel.Order
	transactions  []orderModel.PaymentTransaction
	enrollments   map[string]enrollModel.Enrollment
	events        map[string]notifyModel.OutboxEvent
	progressInits int
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		orders:        make(map[string]orderModel.Order, len(s.orders)),
		transactions:  append([]orderModel.PaymentTransaction(nil), s.transactions...),
		enrollments:   make(map[string]enrollModel.Enrollment, len(s.enrollments)),
		events:        make(map[string]notifyModel.OutboxEvent, len(s.events)),
		progressInits: s.progressInits,
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.enrollments {
		snap.enrollments[k] = v
	}
	for k, v := range s.events {
		snap.events[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.orders = snap.orders
	s.transactions = snap.transactions
	s.enrollments = snap.enrollments
	s.events = snap.events
	s.progressInits = snap.progressInits
}

func (s *memStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// locked 事务外的读取也需要加锁
func (s *memStore) locked(ctx context.Context, fn func()) {
	if ctx.Value(memTxKey{}) == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn()
}

func (s *memStore) fail(step string) error {
	if s.failOn == step {
		return errInjected
	}
	return nil
}

// ---- OrderRepository ----

func (s *memStore) Create(ctx context.Context, o *orderModel.Order) error {
	s.locked(ctx, func() {
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		s.orders[o.ID] = *o
	})
	return nil
}

func (s *memStore) findBy(match func(orderModel.Order) bool) (*orderModel.Order, error) {
	for _, o := range s.orders {
		if match(o) {
			found := o
			return &found, nil
		}
	}
	return nil, errs.ErrOrderNotFound
}

func (s *memStore) GetByID(ctx context.Context, id string) (o *orderModel.Order, err error) {
	s.locked(ctx, func() {
		o, err = s.findBy(func(x orderModel.Order) bool { return x.ID == id })
	})
	return
}

func (s *memStore) GetByCode(ctx context.Context, code string) (o *orderModel.Order, err error) {
	s.locked(ctx, func() {
		o, err = s.findBy(func(x orderModel.Order) bool { return x.OrderCode == code })
	})
	return
}

func (s *memStore) GetByIDForUpdate(ctx context.Context, id string) (*orderModel.Order, error) {
	return s.GetByID(ctx, id)
}

func (s *memStore) GetByCodeForUpdate(ctx context.Context, code string) (*orderModel.Order, error) {
	return s.GetByCode(ctx, code)
}

func (s *memStore) UpdateStatus(ctx context.Context, id string, status orderModel.PaymentStatus, paidAt *time.Time) (updated bool, err error) {
	s.locked(ctx, func() {
		o, ok := s.orders[id]
		if !ok || o.PaymentStatus != orderModel.StatusPending {
			return
		}
		o.PaymentStatus = status
		o.PaidAt = paidAt
		s.orders[id] = o
		updated = true
	})
	return
}

func (s *memStore) List(ctx context.Context, userID string, status orderModel.PaymentStatus, offset, limit int) (list []orderModel.Order, total int64, err error) {
	s.locked(ctx, func() {
		for _, o := range s.orders {
			if o.UserID == userID && (status == "" || o.PaymentStatus == status) {
				list = append(list, o)
			}
		}
		total = int64(len(list))
	})
	return
}

func (s *memStore) CreateTransaction(ctx context.Context, t *orderModel.PaymentTransaction) (err error) {
	if err = s.fail("transaction"); err != nil {
		return
	}
	s.locked(ctx, func() {
		t.ID = uuid.NewString()
		t.CreatedAt = time.Now()
		s.transactions = append(s.transactions, *t)
	})
	return
}

func (s *memStore) ListTransactions(ctx context.Context, orderID string) (list []orderModel.PaymentTransaction, err error) {
	s.locked(ctx, func() {
		for _, t := range s.transactions {
			if t.OrderID == orderID {
				list = append(list, t)
			}
		}
	})
	return
}

func (s *memStore) SumByStatus(ctx context.Context, orderID string, status orderModel.TransactionStatus) (sum decimal.Decimal, err error) {
	s.locked(ctx, func() {
		for _, t := range s.transactions {
			if t.OrderID == orderID && t.Status == status {
				sum = sum.Add(t.Amount)
			}
		}
	})
	return
}

// ---- EnrollmentActivator / ProgressInitializer / OutboxWriter ----

func (s *memStore) Activate(ctx context.Context, userID, courseID string, source enrollModel.EnrollmentSource, orderID *string) (*enrollModel.Enrollment, bool, error) {
	if err := s.fail("activate"); err != nil {
		return nil, false, err
	}
	key := userID + "|" + courseID
	existing, ok := s.enrollments[key]
	if ok && existing.Status != enrollModel.EnrollmentDropped {
		return &existing, false, nil
	}

	e := enrollModel.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		Status:     enrollModel.EnrollmentActive,
		Source:     source,
		OrderID:    orderID,
		EnrolledAt: time.Now(),
	}
	e.ID = uuid.NewString()
	if ok {
		e.ID = existing.ID
	}
	s.enrollments[key] = e
	return &e, true, nil
}

func (s *memStore) EnsureEnrolled(ctx context.Context, userID, courseID string, source enrollModel.EnrollmentSource, orderID *string) (*enrollModel.Enrollment, bool, error) {
	if existing, ok := s.enrollments[userID+"|"+courseID]; ok {
		return &existing, false, nil
	}
	return s.Activate(ctx, userID, courseID, source, orderID)
}

func (s *memStore) InitProgress(ctx context.Context, e *enrollModel.Enrollment) error {
	s.progressInits++
	return nil
}

func (s *memStore) Enqueue(ctx context.Context, e *notifyModel.OutboxEvent) error {
	if err := s.fail("enqueue"); err != nil {
		return err
	}
	key := e.AggregateID + "|" + e.EventType
	if _, ok := s.events[key]; !ok {
		s.events[key] = *e
	}
	return nil
}

// ---- 断言辅助 ----

func (s *memStore) order(id string) orderModel.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) countTransactions(status orderModel.TransactionStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.transactions {
		if t.Status == status {
			n++
		}
	}
	return n
}

func (s *memStore) enrollmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.enrollments)
}

func (s *memStore) enrollment(userID, courseID string) (enrollModel.Enrollment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[userID+"|"+courseID]
	return e, ok
}

func (s *memStore) dropEnrollment(userID, courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + courseID
	e := s.enrollments[key]
	e.Status = enrollModel.EnrollmentDropped
	s.enrollments[key] = e
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// fakeGateway 可配置的渠道实现
type fakeGateway struct {
	mu           sync.Mutex
	name         orderModel.PaymentGateway
	notification *gateway.Notification
	verifyErr    error
	buildErr     error
	refundErr    error
	refunds      []gateway.RefundRequest
	acks         []bool
}

func (g *fakeGateway) Name() orderModel.PaymentGateway {
	return g.name
}

func (g *fakeGateway) BuildPaymentURL(ctx context.Context, order *orderModel.Order) (*gateway.PaymentURL, error) {
	if g.buildErr != nil {
		return nil, g.buildErr
	}
	return &gateway.PaymentURL{Gateway: g.name, Kind: gateway.KindRedirect, URL: "https://pay.example.com/" + order.OrderCode}, nil
}

func (g *fakeGateway) VerifyCallback(ctx context.Context, r *http.Request) (*gateway.Notification, error) {
	return g.verify(gateway.SourceCallback)
}

func (g *fakeGateway) VerifyWebhook(ctx context.Context, r *http.Request) (*gateway.Notification, error) {
	return g.verify(gateway.SourceWebhook)
}

func (g *fakeGateway) verify(source gateway.Source) (*gateway.Notification, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	n := *g.notification
	n.Source = source
	return &n, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, req)
	return &gateway.RefundResult{RefundID: "refund-" + req.RefundNo[:8], Status: "SUCCESS", Raw: []byte(`{"status":"SUCCESS"}`)}, nil
}

func (g *fakeGateway) Acknowledge(w http.ResponseWriter, ok bool) {
	g.acks = append(g.acks, ok)
	w.WriteHeader(http.StatusOK)
}

func (g *fakeGateway) AmountTolerance() decimal.Decimal {
	return decimal.Zero
}
