// Package gateway 支付渠道适配层：生成支付链接、验签回调、退款
package gateway

import (
	"context"
	"net/http"
	"sort"
	"course_market/internal/domain/order/model"
	"course_market/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// Status 网关通知中的支付结果
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
)

// Source 通知来源：callback 为浏览器同步跳转，webhook 为服务端异步通知
type Source string

const (
	SourceCallback Source = "callback"
	SourceWebhook  Source = "webhook"
)

// Notification 验签通过后的统一通知结构
type Notification struct {
	Gateway       model.PaymentGateway
	OrderCode     string
	TransactionID string
	Amount        decimal.Decimal
	ResultCode    string
	Status        Status
	Source        Source
	Raw           []byte
}

// PaymentURL 前端跳转或展示二维码所需的信息
type PaymentURL struct {
	Gateway model.PaymentGateway `json:"gateway"`
	Kind    string               `json:"kind"` // redirect | qrcode
	URL     string               `json:"url"`
}

const (
	KindRedirect = "redirect"
	KindQRCode   = "qrcode"
)

// RefundRequest 退款请求，Amount 已由调用方校验
type RefundRequest struct {
	Order    *model.Order
	RefundNo string
	Amount   decimal.Decimal
	Reason   string
}

// RefundResult 网关退款受理结果
type RefundResult struct {
	RefundID string
	Status   string
	Raw      []byte
}

// Gateway 支付渠道能力接口，编排层按订单保存的渠道选择实现
type Gateway interface {
	Name() model.PaymentGateway
	BuildPaymentURL(ctx context.Context, order *model.Order) (*PaymentURL, error)
	VerifyCallback(ctx context.Context, r *http.Request) (*Notification, error)
	VerifyWebhook(ctx context.Context, r *http.Request) (*Notification, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	// Acknowledge 按渠道协议回写应答
	Acknowledge(w http.ResponseWriter, ok bool)
	// AmountTolerance 金额比对允许的误差
	AmountTolerance() decimal.Decimal
}

// Registry 渠道注册表
type Registry struct {
	gateways map[model.PaymentGateway]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[model.PaymentGateway]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

// Get 按名称获取渠道，未注册返回 ErrUnsupportedGateway
func (r *Registry) Get(name model.PaymentGateway) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, errs.ErrUnsupportedGateway
	}
	return g, nil
}

// Lookup 解析路径中的渠道名
func (r *Registry) Lookup(name string) (Gateway, error) {
	gw, ok := model.ParseGateway(name)
	if !ok {
		return nil, errs.ErrUnsupportedGateway
	}
	return r.Get(gw)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for n := range r.gateways {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}

// ensureOrder 校验订单渠道与适配器一致
func ensureOrder(g Gateway, order *model.Order) error {
	if order.PaymentGateway != g.Name() {
		return errs.ErrGatewayMismatch
	}
	return nil
}

// toFen 元转分
func toFen(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// fromFen 分转元
func fromFen(fen int64) decimal.Decimal {
	return decimal.New(fen, -2)
}

// unavailable 网关调用失败统一包装为可重试错误，超时同样处理
func unavailable(err error) error {
	return errs.ErrGatewayUnavailable.Wrap(err)
}
