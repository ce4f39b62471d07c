package model

import (
	"encoding/json"
	"time"
	"course_market/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 事件类型
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentReceipt   = "payment.receipt"
)

// OutboxStatus 投递状态
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxDispatched OutboxStatus = "DISPATCHED"
	OutboxFailed     OutboxStatus = "FAILED"
)

// OutboxEvent 发件箱事件，与业务数据在同一事务写入，(aggregate_id, event_type) 唯一
type OutboxEvent struct {
	model.BaseModel
	AggregateID  string         `gorm:"type:uuid;not null;uniqueIndex:uk_outbox_aggregate_type" json:"aggregateId"`
	EventType    string         `gorm:"size:64;not null;uniqueIndex:uk_outbox_aggregate_type" json:"eventType"`
	Payload      datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Status       OutboxStatus   `gorm:"size:20;not null;index:idx_outbox_status_available" json:"status"`
	Attempts     int            `gorm:"not null;default:0" json:"attempts"`
	LastError    string         `gorm:"size:512" json:"lastError,omitempty"`
	AvailableAt  time.Time      `gorm:"not null;index:idx_outbox_status_available" json:"availableAt"`
	DispatchedAt *time.Time     `json:"dispatchedAt,omitempty"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// NewEvent 构造待投递事件
func NewEvent(aggregateID, eventType string, payload interface{}, now time.Time) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     datatypes.JSON(data),
		Status:      OutboxPending,
		AvailableAt: now,
	}, nil
}

// Decode 解析事件负载
func (e *OutboxEvent) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// PaymentPayload 支付成功事件负载，推送与回执共用
type PaymentPayload struct {
	OrderID       string          `json:"orderId"`
	OrderCode     string          `json:"orderCode"`
	UserID        string          `json:"userId"`
	CourseID      string          `json:"courseId"`
	CourseTitle   string          `json:"courseTitle"`
	Gateway       string          `json:"gateway"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaidAt        time.Time       `json:"paidAt"`
}
