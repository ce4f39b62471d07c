package repository

import (
	"context"
	"errors"
	"time"
	"course_market/internal/domain/order/model"
	"course_market/internal/pkg/errs"
	"course_market/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单与支付流水仓库，事务从 ctx 获取
type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByCode(ctx context.Context, code string) (*model.Order, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Order, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*model.Order, error)
	// UpdateStatus 仅当订单仍处于 PENDING 时生效，返回是否更新
	UpdateStatus(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error)
	List(ctx context.Context, userID string, status model.PaymentStatus, offset, limit int) ([]model.Order, int64, error)

	CreateTransaction(ctx context.Context, t *model.PaymentTransaction) error
	ListTransactions(ctx context.Context, orderID string) ([]model.PaymentTransaction, error)
	SumByStatus(ctx context.Context, orderID string, status model.TransactionStatus) (decimal.Decimal, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create 订单号冲突时返回 database.ErrDuplicate
func (r *orderRepository) Create(ctx context.Context, o *model.Order) error {
	if err := database.Conn(ctx, r.db).Create(o).Error; err != nil {
		if database.IsDuplicate(err) {
			return database.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return r.first(database.Conn(ctx, r.db), "id = ?", id)
}

func (r *orderRepository) GetByCode(ctx context.Context, code string) (*model.Order, error) {
	return r.first(database.Conn(ctx, r.db), "order_code = ?", code)
}

func (r *orderRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return r.first(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *orderRepository) GetByCodeForUpdate(ctx context.Context, code string) (*model.Order, error) {
	return r.first(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), "order_code = ?", code)
}

func (r *orderRepository) first(tx *gorm.DB, query string, arg interface{}) (*model.Order, error) {
	var o model.Order
	if err := tx.Where(query, arg).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"payment_status": status}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	result := database.Conn(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", id, model.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// List status 为空时不过滤
func (r *orderRepository) List(ctx context.Context, userID string, status model.PaymentStatus, offset, limit int) ([]model.Order, int64, error) {
	var (
		orders []model.Order
		total  int64
	)
	tx := database.Conn(ctx, r.db).Model(&model.Order{}).Where("user_id = ?", userID)
	if status != "" {
		tx = tx.Where("payment_status = ?", status)
	}
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.Order{}, 0, nil
	}
	err := tx.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error
	return orders, total, err
}

func (r *orderRepository) CreateTransaction(ctx context.Context, t *model.PaymentTransaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return database.Conn(ctx, r.db).Create(t).Error
}

func (r *orderRepository) ListTransactions(ctx context.Context, orderID string) ([]model.PaymentTransaction, error) {
	var list []model.PaymentTransaction
	err := database.Conn(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *orderRepository) SumByStatus(ctx context.Context, orderID string, status model.TransactionStatus) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := database.Conn(ctx, r.db).Model(&model.PaymentTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("order_id = ? AND status = ?", orderID, status).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
