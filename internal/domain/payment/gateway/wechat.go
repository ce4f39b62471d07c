package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"course_market/internal/domain/order/model"
	"course_market/internal/pkg/config"
	"course_market/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/downloader"
	"github.com/wechatpay-apiv3/wechatpay-go/core/notify"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/native"
	"github.com/wechatpay-apiv3/wechatpay-go/services/refunddomestic"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// 微信支付交易状态
const (
	wechatTradeSuccess    = "SUCCESS"
	wechatTradeRefund     = "REFUND"
	wechatTradeClosed     = "CLOSED"
	wechatTradeRevoked    = "REVOKED"
	wechatTradePayError   = "PAYERROR"
	wechatDefaultCurrency = "CNY"
)

// wechatClient 对 SDK 各服务的最小封装，便于测试替换
type wechatClient interface {
	Prepay(ctx context.Context, req native.PrepayRequest) (*native.PrepayResponse, error)
	QueryByOutTradeNo(ctx context.Context, outTradeNo string) (*payments.Transaction, error)
	Refund(ctx context.Context, req refunddomestic.CreateRequest) (*refunddomestic.Refund, error)
	ParseNotify(ctx context.Context, r *http.Request) (*payments.Transaction, []byte, error)
}

type sdkWechatClient struct {
	mchID   string
	native  native.NativeApiService
	refunds refunddomestic.RefundsApiService
	handler *notify.Handler
}

func (c *sdkWechatClient) Prepay(ctx context.Context, req native.PrepayRequest) (*native.PrepayResponse, error) {
	resp, _, err := c.native.Prepay(ctx, req)
	return resp, err
}

func (c *sdkWechatClient) QueryByOutTradeNo(ctx context.Context, outTradeNo string) (*payments.Transaction, error) {
	resp, _, err := c.native.QueryOrderByOutTradeNo(ctx, native.QueryOrderByOutTradeNoRequest{
		OutTradeNo: core.String(outTradeNo),
		Mchid:      core.String(c.mchID),
	})
	return resp, err
}

func (c *sdkWechatClient) Refund(ctx context.Context, req refunddomestic.CreateRequest) (*refunddomestic.Refund, error) {
	resp, _, err := c.refunds.Create(ctx, req)
	return resp, err
}

func (c *sdkWechatClient) ParseNotify(ctx context.Context, r *http.Request) (*payments.Transaction, []byte, error) {
	transaction := new(payments.Transaction)
	req, err := c.handler.ParseNotifyRequest(ctx, r, transaction)
	if err != nil {
		return nil, nil, err
	}
	var raw []byte
	if req.Resource != nil {
		raw = []byte(req.Resource.Plaintext)
	}
	return transaction, raw, nil
}

type WechatGateway struct {
	client  wechatClient
	config  config.WechatPayConfig
	timeout time.Duration
}

// NewWechatGateway 初始化时会下载平台证书，需要网络
func NewWechatGateway(ctx context.Context, cfg config.WechatPayConfig, timeout time.Duration) (*WechatGateway, error) {
	if cfg.AppID == "" || cfg.MchID == "" || cfg.MchPrivateKey == "" || cfg.APIv3Key == "" || cfg.MchCertificateSerial == "" {
		return nil, errs.ErrGatewayConfig.WithMessage("wechat pay config missing")
	}

	// 1. 加载商户私钥
	mchPrivateKey, err := utils.LoadPrivateKey(cfg.MchPrivateKey)
	if err != nil {
		return nil, errs.ErrGatewayConfig.Wrap(err)
	}

	// 2. 初始化 Client，自动下载并更新平台证书
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := core.NewClient(ctx,
		option.WithWechatPayAutoAuthCipher(cfg.MchID, cfg.MchCertificateSerial, mchPrivateKey, cfg.APIv3Key))
	if err != nil {
		return nil, unavailable(err)
	}

	// 3. 用平台证书验签通知
	certVisitor := downloader.MgrInstance().GetCertificateVisitor(cfg.MchID)
	handler := notify.NewNotifyHandler(cfg.APIv3Key, verifiers.NewSHA256WithRSAVerifier(certVisitor))

	return newWechatGateway(&sdkWechatClient{
		mchID:   cfg.MchID,
		native:  native.NativeApiService{Client: client},
		refunds: refunddomestic.RefundsApiService{Client: client},
		handler: handler,
	}, cfg, timeout), nil
}

func newWechatGateway(client wechatClient, cfg config.WechatPayConfig, timeout time.Duration) *WechatGateway {
	return &WechatGateway{client: client, config: cfg, timeout: timeout}
}

func (g *WechatGateway) Name() model.PaymentGateway {
	return model.GatewayWechat
}

// BuildPaymentURL Native 下单，返回二维码链接 code_url，金额单位为分
func (g *WechatGateway) BuildPaymentURL(ctx context.Context, order *model.Order) (*PaymentURL, error) {
	if err := ensureOrder(g, order); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := native.PrepayRequest{
		Appid:       core.String(g.config.AppID),
		Mchid:       core.String(g.config.MchID),
		Description: core.String(subject(order)),
		OutTradeNo:  core.String(order.OrderCode),
		NotifyUrl:   core.String(g.config.NotifyURL),
		Amount: &native.Amount{
			Total:    core.Int64(toFen(order.FinalPrice)),
			Currency: core.String(currency(order.Currency)),
		},
	}

	resp, err := g.client.Prepay(ctx, req)
	if err != nil {
		return nil, unavailable(err)
	}
	if resp == nil || resp.CodeUrl == nil {
		return nil, unavailable(errors.New("wechat prepay returned no code_url"))
	}

	return &PaymentURL{Gateway: g.Name(), Kind: KindQRCode, URL: *resp.CodeUrl}, nil
}

// VerifyCallback 浏览器跳转不带签名字段，以服务端主动查单结果为准
func (g *WechatGateway) VerifyCallback(ctx context.Context, r *http.Request) (*Notification, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errs.ErrVerification.Wrap(err)
	}
	outTradeNo := r.Form.Get("out_trade_no")
	if outTradeNo == "" {
		return nil, errs.ErrVerification.Wrap(errors.New("missing out_trade_no"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	transaction, err := g.client.QueryByOutTradeNo(ctx, outTradeNo)
	if err != nil {
		return nil, unavailable(err)
	}
	raw, _ := json.Marshal(transaction)

	return g.normalize(transaction, raw, SourceCallback)
}

// VerifyWebhook SDK 完成验签与 AES-GCM 解密
func (g *WechatGateway) VerifyWebhook(ctx context.Context, r *http.Request) (*Notification, error) {
	transaction, raw, err := g.client.ParseNotify(ctx, r)
	if err != nil {
		return nil, errs.ErrVerification.Wrap(err)
	}
	return g.normalize(transaction, raw, SourceWebhook)
}

func (g *WechatGateway) normalize(t *payments.Transaction, raw []byte, source Source) (*Notification, error) {
	if t == nil || t.OutTradeNo == nil || t.TradeState == nil {
		return nil, errs.ErrVerification.Wrap(errors.New("incomplete wechat transaction"))
	}

	var amount decimal.Decimal
	if t.Amount != nil && t.Amount.Total != nil {
		amount = fromFen(*t.Amount.Total)
	}

	return &Notification{
		Gateway:       g.Name(),
		OrderCode:     *t.OutTradeNo,
		TransactionID: strValue(t.TransactionId),
		Amount:        amount,
		ResultCode:    *t.TradeState,
		Status:        wechatStatus(*t.TradeState),
		Source:        source,
		Raw:           raw,
	}, nil
}

// wechatStatus REFUND 表示已支付后发生退款，支付本身成功
func wechatStatus(state string) Status {
	switch state {
	case wechatTradeSuccess, wechatTradeRefund:
		return StatusSuccess
	case wechatTradeClosed, wechatTradeRevoked, wechatTradePayError:
		return StatusFailed
	default:
		return StatusPending
	}
}

func (g *WechatGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if err := ensureOrder(g, req.Order); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	create := refunddomestic.CreateRequest{
		OutTradeNo:  core.String(req.Order.OrderCode),
		OutRefundNo: core.String(req.RefundNo),
		Amount: &refunddomestic.AmountReq{
			Refund:   core.Int64(toFen(req.Amount)),
			Total:    core.Int64(toFen(req.Order.FinalPrice)),
			Currency: core.String(currency(req.Order.Currency)),
		},
	}
	if req.Reason != "" {
		create.Reason = core.String(req.Reason)
	}

	resp, err := g.client.Refund(ctx, create)
	if err != nil {
		return nil, unavailable(err)
	}

	result := &RefundResult{RefundID: strValue(resp.RefundId)}
	if resp.Status != nil {
		result.Status = string(*resp.Status)
	}
	result.Raw, _ = json.Marshal(resp)
	return result, nil
}

// Acknowledge 2xx 表示成功，失败需返回 4xx/5xx 与 FAIL 应答
func (g *WechatGateway) Acknowledge(w http.ResponseWriter, ok bool) {
	if ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": "FAIL", "message": "failed"})
}

func (g *WechatGateway) AmountTolerance() decimal.Decimal {
	return decimal.Zero
}

func currency(c string) string {
	if c == "" {
		return wechatDefaultCurrency
	}
	return c
}

var _ Gateway = (*WechatGateway)(nil)

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
