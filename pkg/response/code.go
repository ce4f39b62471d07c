package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 鉴权错误 100xx
	ErrAuthFailed   = 10003
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 课程模块错误 300xx
	ErrCourseNotFound     = 30001
	ErrCourseNotPublished = 30002
	ErrFreeCourse         = 30003
	ErrPaidCourse         = 30004
	ErrLessonNotFound     = 30005

	// 订单模块错误 400xx
	ErrOrderNotFound     = 40001
	ErrInvalidOrderState = 40002
	ErrNotOrderOwner     = 40003
	ErrAlreadyEnrolled   = 40004
	ErrOrderCodeConflict = 40005

	// 支付模块错误 410xx
	ErrUnsupportedGateway  = 41001
	ErrGatewayMismatch     = 41002
	ErrGatewayConfig       = 41003
	ErrGatewayUnavailable  = 41004
	ErrAlreadyPaid         = 41005
	ErrVerification        = 41006
	ErrInvalidRefundAmount = 41007
	ErrAmountMismatch      = 41008

	// 学习模块错误 600xx
	ErrEnrollmentNotFound = 60001

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
