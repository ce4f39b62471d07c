package common

import (
	"errors"

	"course_market/internal/pkg/errs"
	"course_market/pkg/logger"
	"course_market/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RespondError 将业务错误转换为统一响应，内部错误不向客户端泄露细节
func RespondError(c *gin.Context, err error) {
	var appErr *errs.Error
	if !errors.As(err, &appErr) || appErr.Kind == errs.KindInternal {
		logger.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Error(err))
		response.Error(c, errs.HTTPStatus(err), errs.CodeOf(err), "internal server error")
		return
	}

	response.Error(c, errs.HTTPStatus(err), appErr.Code, appErr.Message)
}

// CurrentUserID 获取 AuthMiddleware 写入的用户 ID
func CurrentUserID(c *gin.Context) string {
	val, _ := c.Get("userID")
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

// CurrentRole 获取 AuthMiddleware 写入的角色
func CurrentRole(c *gin.Context) int {
	val, _ := c.Get("role")
	if role, ok := val.(int); ok {
		return role
	}
	return 0
}
