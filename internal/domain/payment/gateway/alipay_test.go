package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"course_market/internal/domain/order/model"
	"course_market/internal/pkg/config"
	"course_market/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/smartwalle/alipay/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAlipayClient 以 sign 字段是否为 valid 模拟验签
type fakeAlipayClient struct {
	pagePay   alipay.TradePagePay
	refund    alipay.TradeRefund
	refunds   int
	refundRsp *alipay.TradeRefundRsp
	refundErr error
}

func (f *fakeAlipayClient) TradePagePay(param alipay.TradePagePay) (*url.URL, error) {
	f.pagePay = param
	return url.Parse("https://openapi.alipay.com/gateway.do?out_trade_no=" + param.OutTradeNo)
}

func (f *fakeAlipayClient) DecodeNotification(values url.Values) (*alipay.Notification, error) {
	if values.Get("sign") != "valid" {
		return nil, errors.New("alipay: bad sign")
	}
	return &alipay.Notification{
		OutTradeNo:  values.Get("out_trade_no"),
		TradeNo:     values.Get("trade_no"),
		TotalAmount: values.Get("total_amount"),
		TradeStatus: alipay.TradeStatus(values.Get("trade_status")),
	}, nil
}

func (f *fakeAlipayClient) TradeRefund(param alipay.TradeRefund) (*alipay.TradeRefundRsp, error) {
	f.refunds++
	f.refund = param
	return f.refundRsp, f.refundErr
}

func newTestAlipay(client *fakeAlipayClient) *AlipayGateway {
	return newAlipayGateway(client, config.AlipayConfig{
		AppID:     "2021000000",
		NotifyURL: "https://shop.example.com/payments/alipay/webhook",
		ReturnURL: "https://shop.example.com/payments/alipay/callback",
	})
}

func TestNewAlipayGatewayMissingConfig(t *testing.T) {
	_, err := NewAlipayGateway(config.AlipayConfig{AppID: "2021000000"}, time.Second)
	assert.ErrorIs(t, err, errs.ErrGatewayConfig)
}

func TestAlipayBuildPaymentURL(t *testing.T) {
	client := &fakeAlipayClient{}
	g := newTestAlipay(client)

	pay, err := g.BuildPaymentURL(context.Background(), testOrder(model.GatewayAlipay, "80000"))
	require.NoError(t, err)

	assert.Equal(t, KindRedirect, pay.Kind)
	assert.Contains(t, pay.URL, "out_trade_no=20260101120000deadbeef")
	assert.Equal(t, "80000.00", client.pagePay.TotalAmount)
	assert.Equal(t, alipayPageProductCode, client.pagePay.ProductCode)
	assert.Equal(t, "Distributed Systems", client.pagePay.Subject)
	assert.Equal(t, "https://shop.example.com/payments/alipay/webhook", client.pagePay.NotifyURL)
	assert.Equal(t, "https://shop.example.com/payments/alipay/callback", client.pagePay.ReturnURL)

	_, err = g.BuildPaymentURL(context.Background(), testOrder(model.GatewayWechat, "80000"))
	assert.ErrorIs(t, err, errs.ErrGatewayMismatch)
}

func alipayForm(sign string, extra map[string]string) url.Values {
	v := url.Values{}
	v.Set("out_trade_no", "20260101120000deadbeef")
	v.Set("trade_no", "2026010122001400000001")
	v.Set("total_amount", "80000.00")
	v.Set("sign", sign)
	for k, val := range extra {
		v.Set(k, val)
	}
	return v
}

func TestAlipayVerifyWebhook(t *testing.T) {
	g := newTestAlipay(&fakeAlipayClient{})

	tests := []struct {
		name   string
		status string
		want   Status
	}{
		{"trade success", "TRADE_SUCCESS", StatusSuccess},
		{"trade finished", "TRADE_FINISHED", StatusSuccess},
		{"trade closed", "TRADE_CLOSED", StatusFailed},
		{"waiting", "WAIT_BUYER_PAY", StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := alipayForm("valid", map[string]string{"trade_status": tt.status})
			req := httptest.NewRequest(http.MethodPost, "/payments/alipay/webhook", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			n, err := g.VerifyWebhook(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Status)
			assert.Equal(t, SourceWebhook, n.Source)
			assert.Equal(t, "20260101120000deadbeef", n.OrderCode)
			assert.Equal(t, "2026010122001400000001", n.TransactionID)
			assert.True(t, n.Amount.Equal(decimal.NewFromInt(80000)))
			assert.Equal(t, tt.status, n.ResultCode)
			assert.NotEmpty(t, n.Raw)
		})
	}
}

func TestAlipayVerifyRejectsBadSignature(t *testing.T) {
	g := newTestAlipay(&fakeAlipayClient{})
	form := alipayForm("forged", map[string]string{"trade_status": "TRADE_SUCCESS"})
	req := httptest.NewRequest(http.MethodPost, "/payments/alipay/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err := g.VerifyWebhook(context.Background(), req)
	assert.ErrorIs(t, err, errs.ErrVerification)
}

func TestAlipayVerifyCallbackWithoutTradeStatus(t *testing.T) {
	g := newTestAlipay(&fakeAlipayClient{})
	req := httptest.NewRequest(http.MethodGet, "/payments/alipay/callback?"+alipayForm("valid", nil).Encode(), nil)

	n, err := g.VerifyCallback(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, SourceCallback, n.Source)
}

func TestAlipayRefund(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		rsp := &alipay.TradeRefundRsp{TradeNo: "2026010122001400000001"}
		rsp.Code = alipay.CodeSuccess
		client := &fakeAlipayClient{refundRsp: rsp}
		g := newTestAlipay(client)

		res, err := g.Refund(context.Background(), RefundRequest{
			Order:    testOrder(model.GatewayAlipay, "80000"),
			RefundNo: "r-1",
			Amount:   decimal.RequireFromString("100.5"),
			Reason:   "duplicate purchase",
		})
		require.NoError(t, err)
		assert.Equal(t, "2026010122001400000001", res.RefundID)
		assert.Equal(t, "100.50", client.refund.RefundAmount)
		assert.Equal(t, "r-1", client.refund.OutRequestNo)
		assert.Equal(t, "duplicate purchase", client.refund.RefundReason)
	})

	t.Run("rejected by gateway", func(t *testing.T) {
		rsp := &alipay.TradeRefundRsp{}
		rsp.Code = "40004"
		rsp.SubCode = "ACQ.TRADE_NOT_EXIST"
		g := newTestAlipay(&fakeAlipayClient{refundRsp: rsp})

		_, err := g.Refund(context.Background(), RefundRequest{Order: testOrder(model.GatewayAlipay, "10"), Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, errs.ErrGatewayUnavailable)
	})

	t.Run("network error", func(t *testing.T) {
		g := newTestAlipay(&fakeAlipayClient{refundErr: context.DeadlineExceeded})

		_, err := g.Refund(context.Background(), RefundRequest{Order: testOrder(model.GatewayAlipay, "10"), Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, errs.ErrGatewayUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("cancelled before call", func(t *testing.T) {
		client := &fakeAlipayClient{}
		g := newTestAlipay(client)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := g.Refund(ctx, RefundRequest{Order: testOrder(model.GatewayAlipay, "10"), Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, errs.ErrGatewayUnavailable)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, client.refunds)
	})
}

func TestAlipayAcknowledge(t *testing.T) {
	g := newTestAlipay(&fakeAlipayClient{})

	w := httptest.NewRecorder()
	g.Acknowledge(w, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", w.Body.String())

	w = httptest.NewRecorder()
	g.Acknowledge(w, false)
	assert.Equal(t, "fail", w.Body.String())
}
