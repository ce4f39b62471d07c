package gateway

import (
	"context"
	"net/http"
	"course_market/internal/domain/order/model"
	"course_market/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// Unconfigured 凭证缺失时占位的渠道：下单前即可返回 ErrGatewayConfig，
// 回调一律验签失败
type Unconfigured struct {
	name  model.PaymentGateway
	cause error
}

func NewUnconfigured(name model.PaymentGateway, cause error) *Unconfigured {
	return &Unconfigured{name: name, cause: cause}
}

func (u *Unconfigured) Name() model.PaymentGateway {
	return u.name
}

func (u *Unconfigured) BuildPaymentURL(ctx context.Context, order *model.Order) (*PaymentURL, error) {
	if err := ensureOrder(u, order); err != nil {
		return nil, err
	}
	return nil, u.configErr()
}

func (u *Unconfigured) VerifyCallback(ctx context.Context, r *http.Request) (*Notification, error) {
	return nil, errs.ErrVerification.Wrap(u.configErr())
}

func (u *Unconfigured) VerifyWebhook(ctx context.Context, r *http.Request) (*Notification, error) {
	return nil, errs.ErrVerification.Wrap(u.configErr())
}

func (u *Unconfigured) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	return nil, u.configErr()
}

func (u *Unconfigured) Acknowledge(w http.ResponseWriter, ok bool) {
	if ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusBadRequest)
}

func (u *Unconfigured) AmountTolerance() decimal.Decimal {
	return decimal.Zero
}

func (u *Unconfigured) configErr() error {
	if u.cause != nil {
		return errs.ErrGatewayConfig.Wrap(u.cause)
	}
	return errs.ErrGatewayConfig
}
