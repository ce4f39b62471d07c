// Package errs 定义收银台统一的业务错误分类
package errs

import (
	"errors"
	"net/http"

	"course_market/pkg/response"
)

// Kind 错误类别，决定对外暴露方式
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuthorization
	KindGateway      // 可重试，透传给调用方
	KindVerification // 回调验签失败，只记录不对付款人暴露
)

// Error 业务错误
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func New(kind Kind, code int, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按业务码匹配，使 Wrap 之后的错误仍能被 errors.Is 识别
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap 携带底层错误
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

// WithMessage 替换提示信息，保留业务码
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: msg, Err: e.Err}
}

// KindOf 返回错误类别，非业务错误视为内部错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus 错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindGateway:
		return http.StatusBadGateway
	case KindVerification:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf 返回业务码
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return response.ErrServerInternal
}

// 课程
var (
	ErrCourseNotFound     = New(KindNotFound, response.ErrCourseNotFound, "course not found")
	ErrCourseNotPublished = New(KindValidation, response.ErrCourseNotPublished, "course is not published")
	ErrFreeCourse         = New(KindValidation, response.ErrFreeCourse, "free course cannot be ordered, enroll directly")
	ErrPaidCourse         = New(KindValidation, response.ErrPaidCourse, "paid course requires checkout")
	ErrLessonNotFound     = New(KindNotFound, response.ErrLessonNotFound, "lesson not found")
)

// 订单
var (
	ErrOrderNotFound     = New(KindNotFound, response.ErrOrderNotFound, "order not found")
	ErrInvalidOrderState = New(KindValidation, response.ErrInvalidOrderState, "invalid order state")
	ErrNotOrderOwner     = New(KindAuthorization, response.ErrNotOrderOwner, "order does not belong to user")
	ErrAlreadyEnrolled   = New(KindConflict, response.ErrAlreadyEnrolled, "already enrolled")
	ErrOrderCodeConflict = New(KindInternal, response.ErrOrderCodeConflict, "could not allocate a unique order code")
)

// 支付
var (
	ErrUnsupportedGateway  = New(KindValidation, response.ErrUnsupportedGateway, "unsupported payment gateway")
	ErrGatewayMismatch     = New(KindValidation, response.ErrGatewayMismatch, "payment gateway mismatch")
	ErrGatewayConfig       = New(KindGateway, response.ErrGatewayConfig, "payment gateway is not configured")
	ErrGatewayUnavailable  = New(KindGateway, response.ErrGatewayUnavailable, "payment gateway unavailable, please retry")
	ErrAlreadyPaid         = New(KindConflict, response.ErrAlreadyPaid, "order already paid")
	ErrVerification        = New(KindVerification, response.ErrVerification, "payment notification verification failed")
	ErrInvalidRefundAmount = New(KindValidation, response.ErrInvalidRefundAmount, "invalid refund amount")
	ErrAmountMismatch      = New(KindVerification, response.ErrAmountMismatch, "paid amount does not match order")
)

// 学习
var (
	ErrEnrollmentNotFound = New(KindNotFound, response.ErrEnrollmentNotFound, "enrollment not found")
)

// 鉴权
var (
	ErrForbidden = New(KindAuthorization, response.ErrNoPermission, "permission denied")
)

// 参数
var (
	ErrInvalidParam = New(KindValidation, response.ErrInvalidParam, "invalid parameter")
)
