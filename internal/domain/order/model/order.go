package model

import (
	"encoding/json"
	"time"
	"course_market/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentGateway 支付渠道
type PaymentGateway string

const (
	GatewayAlipay PaymentGateway = "alipay"
	GatewayWechat PaymentGateway = "wechat"
)

// ParseGateway 校验支付渠道枚举
func ParseGateway(s string) (PaymentGateway, bool) {
	switch g := PaymentGateway(s); g {
	case GatewayAlipay, GatewayWechat:
		return g, true
	}
	return "", false
}

// PaymentStatus 订单支付状态，PENDING → PAID | FAILED
type PaymentStatus string

const (
	StatusPending PaymentStatus = "PENDING"
	StatusPaid    PaymentStatus = "PAID"
	StatusFailed  PaymentStatus = "FAILED"
)

// BillingAddress 账单地址（可选）
type BillingAddress struct {
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Order 订单，价格在创建时快照
type Order struct {
	model.BaseModel
	UserID         string          `gorm:"type:uuid;index;not null" json:"userId"`
	CourseID       string          `gorm:"type:uuid;index;not null" json:"courseId"`
	CourseTitle    string          `gorm:"size:255" json:"courseTitle"`
	OrderCode      string          `gorm:"size:32;uniqueIndex;not null" json:"orderCode"`
	OriginalPrice  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"originalPrice"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"discountAmount"`
	FinalPrice     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"finalPrice"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	PaymentGateway PaymentGateway  `gorm:"size:20;not null" json:"paymentGateway"`
	PaymentStatus  PaymentStatus   `gorm:"size:20;index;not null" json:"paymentStatus"`
	BillingAddress datatypes.JSON  `gorm:"type:jsonb" json:"billingAddress,omitempty" swaggertype:"object"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// SetBillingAddress 写入账单地址，nil 表示不填写
func (o *Order) SetBillingAddress(addr *BillingAddress) error {
	if addr == nil {
		o.BillingAddress = nil
		return nil
	}
	data, err := json.Marshal(addr)
	if err != nil {
		return err
	}
	o.BillingAddress = datatypes.JSON(data)
	return nil
}

// IsOwnedBy 订单归属
func (o *Order) IsOwnedBy(userID string) bool {
	return o.UserID == userID
}

// TransactionStatus 支付流水状态
type TransactionStatus string

const (
	TransactionSuccess  TransactionStatus = "SUCCESS"
	TransactionFailed   TransactionStatus = "FAILED"
	TransactionRefunded TransactionStatus = "REFUNDED"
)

// PaymentTransaction 支付流水，只追加不修改
type PaymentTransaction struct {
	ID             string            `gorm:"primaryKey;type:uuid" json:"id"`
	OrderID        string            `gorm:"type:uuid;index;not null" json:"orderId"`
	TransactionID  string            `gorm:"size:64;index" json:"transactionId"`
	PaymentGateway PaymentGateway    `gorm:"size:20;not null" json:"paymentGateway"`
	Amount         decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency       string            `gorm:"size:3;not null" json:"currency"`
	Status         TransactionStatus `gorm:"size:20;not null" json:"status"`
	Reason         string            `gorm:"size:255" json:"reason,omitempty"`
	RawPayload     datatypes.JSON    `gorm:"type:jsonb" json:"-"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// OrderStats 用户订单统计
type OrderStats struct {
	TotalOrders   int64           `db:"total_orders" json:"totalOrders"`
	PaidOrders    int64           `db:"paid_orders" json:"paidOrders"`
	PendingOrders int64           `db:"pending_orders" json:"pendingOrders"`
	FailedOrders  int64           `db:"failed_orders" json:"failedOrders"`
	TotalSpent    decimal.Decimal `db:"total_spent" json:"totalSpent"`
}
