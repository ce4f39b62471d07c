package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"course_market/internal/domain/order/model"
	"course_market/internal/pkg/config"
	"course_market/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/smartwalle/alipay/v3"
)

// 电脑网站支付产品码
const alipayPageProductCode = "FAST_INSTANT_TRADE_PAY"

// alipayClient 使用到的 SDK 方法，便于测试替换
type alipayClient interface {
	TradePagePay(param alipay.TradePagePay) (*url.URL, error)
	DecodeNotification(values url.Values) (*alipay.Notification, error)
	TradeRefund(param alipay.TradeRefund) (*alipay.TradeRefundRsp, error)
}

var _ alipayClient = (*alipay.Client)(nil)

type AlipayGateway struct {
	client alipayClient
	config config.AlipayConfig
}

func NewAlipayGateway(cfg config.AlipayConfig, timeout time.Duration) (*AlipayGateway, error) {
	if cfg.AppID == "" || cfg.PrivateKey == "" || cfg.PublicKey == "" {
		return nil, errs.ErrGatewayConfig.WithMessage("alipay config missing")
	}

	// SDK 方法不接收 context，超时由 HTTP 客户端统一控制
	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.IsProduction,
		alipay.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, errs.ErrGatewayConfig.Wrap(err)
	}

	// 加载支付宝公钥 (用于验证签名)
	if err = client.LoadAliPayPublicKey(cfg.PublicKey); err != nil {
		return nil, errs.ErrGatewayConfig.Wrap(err)
	}

	return newAlipayGateway(client, cfg), nil
}

func newAlipayGateway(client alipayClient, cfg config.AlipayConfig) *AlipayGateway {
	return &AlipayGateway{client: client, config: cfg}
}

func (g *AlipayGateway) Name() model.PaymentGateway {
	return model.GatewayAlipay
}

// BuildPaymentURL 生成电脑网站支付跳转链接，金额单位为元
func (g *AlipayGateway) BuildPaymentURL(ctx context.Context, order *model.Order) (*PaymentURL, error) {
	if err := ensureOrder(g, order); err != nil {
		return nil, err
	}

	p := alipay.TradePagePay{}
	p.NotifyURL = g.config.NotifyURL
	p.ReturnURL = g.config.ReturnURL
	p.Subject = subject(order)
	p.OutTradeNo = order.OrderCode
	p.TotalAmount = order.FinalPrice.StringFixed(2)
	p.ProductCode = alipayPageProductCode

	// 签名在本地完成，失败只可能是密钥问题
	u, err := g.client.TradePagePay(p)
	if err != nil {
		return nil, errs.ErrGatewayConfig.Wrap(err)
	}

	return &PaymentURL{Gateway: g.Name(), Kind: KindRedirect, URL: u.String()}, nil
}

// VerifyCallback 同步跳转参数同样带签名，不含 trade_status 时视为处理中
func (g *AlipayGateway) VerifyCallback(ctx context.Context, r *http.Request) (*Notification, error) {
	return g.decode(r, SourceCallback)
}

// VerifyWebhook 异步通知，POST 表单
func (g *AlipayGateway) VerifyWebhook(ctx context.Context, r *http.Request) (*Notification, error) {
	return g.decode(r, SourceWebhook)
}

func (g *AlipayGateway) decode(r *http.Request, source Source) (*Notification, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errs.ErrVerification.Wrap(err)
	}
	values := r.Form

	// 1. 验证签名
	noti, err := g.client.DecodeNotification(values)
	if err != nil {
		return nil, errs.ErrVerification.Wrap(err)
	}

	// 2. 解析金额
	amount, err := decimal.NewFromString(noti.TotalAmount)
	if err != nil {
		return nil, errs.ErrVerification.Wrap(fmt.Errorf("invalid total_amount %q", noti.TotalAmount))
	}

	raw, _ := json.Marshal(values)

	return &Notification{
		Gateway:       g.Name(),
		OrderCode:     noti.OutTradeNo,
		TransactionID: noti.TradeNo,
		Amount:        amount,
		ResultCode:    string(noti.TradeStatus),
		Status:        alipayStatus(noti.TradeStatus),
		Source:        source,
		Raw:           raw,
	}, nil
}

// alipayStatus TRADE_SUCCESS 或 TRADE_FINISHED 表示成功
func alipayStatus(s alipay.TradeStatus) Status {
	switch s {
	case alipay.TradeStatusSuccess, alipay.TradeStatusFinished:
		return StatusSuccess
	case alipay.TradeStatusClosed:
		return StatusFailed
	default:
		return StatusPending
	}
}

func (g *AlipayGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if err := ensureOrder(g, req.Order); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}

	p := alipay.TradeRefund{
		OutTradeNo:   req.Order.OrderCode,
		RefundAmount: req.Amount.StringFixed(2),
		RefundReason: req.Reason,
		OutRequestNo: req.RefundNo,
	}
	rsp, err := g.client.TradeRefund(p)
	if err != nil {
		return nil, unavailable(err)
	}
	if rsp.Code != alipay.CodeSuccess {
		return nil, unavailable(fmt.Errorf("alipay refund rejected: %s %s", rsp.SubCode, rsp.SubMsg))
	}

	raw, _ := json.Marshal(rsp)
	return &RefundResult{RefundID: rsp.TradeNo, Status: string(rsp.Code), Raw: raw}, nil
}

// Acknowledge 支付宝要求返回纯文本 success，否则会持续重试
func (g *AlipayGateway) Acknowledge(w http.ResponseWriter, ok bool) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if ok {
		_, _ = w.Write([]byte("success"))
		return
	}
	_, _ = w.Write([]byte("fail"))
}

func (g *AlipayGateway) AmountTolerance() decimal.Decimal {
	return decimal.Zero
}

func subject(order *model.Order) string {
	if order.CourseTitle != "" {
		return order.CourseTitle
	}
	return "Order " + order.OrderCode
}

var _ Gateway = (*AlipayGateway)(nil)
