package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"course_market/internal/domain/notification/model"
	"course_market/internal/pkg/push"
	"course_market/internal/pkg/uploader"
)

// NewPaymentSucceededHandler 支付成功后推送给购买者
func NewPaymentSucceededHandler(p push.PushService) Handler {
	return func(ctx context.Context, e *model.OutboxEvent) error {
		var payload model.PaymentPayload
		if err := e.Decode(&payload); err != nil {
			return fmt.Errorf("%w: decode payload: %v", ErrPermanent, err)
		}

		title := "支付成功"
		body := fmt.Sprintf("您已成功购买课程《%s》，订单号 %s，现在就可以开始学习了。", payload.CourseTitle, payload.OrderCode)
		return p.PushToAccount(ctx, payload.UserID, title, body, map[string]string{
			"type":     model.EventPaymentSucceeded,
			"orderId":  payload.OrderID,
			"courseId": payload.CourseID,
		})
	}
}

// Receipt 归档到 OSS 的支付回执
type Receipt struct {
	model.PaymentPayload
	IssuedAt time.Time `json:"issuedAt"`
}

// ReceiptKey 回执对象名，按支付日期分目录
func ReceiptKey(p model.PaymentPayload) string {
	return fmt.Sprintf("%s/%s.json", p.PaidAt.UTC().Format("2006/01/02"), p.OrderCode)
}

// NewReceiptHandler 生成支付回执并上传
func NewReceiptHandler(u uploader.Uploader, now func() time.Time) Handler {
	return func(ctx context.Context, e *model.OutboxEvent) error {
		var payload model.PaymentPayload
		if err := e.Decode(&payload); err != nil {
			return fmt.Errorf("%w: decode payload: %v", ErrPermanent, err)
		}

		data, err := json.MarshalIndent(Receipt{PaymentPayload: payload, IssuedAt: now()}, "", "  ")
		if err != nil {
			return fmt.Errorf("%w: encode receipt: %v", ErrPermanent, err)
		}
		_, err = u.Put(ctx, ReceiptKey(payload), data, "application/json")
		return err
	}
}
