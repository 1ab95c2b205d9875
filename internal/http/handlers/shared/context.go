package shared

import (
	"strings"

	"github.com/matajir-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

const (
	// OperatorContextKey 当前运营账号
	OperatorContextKey = "operator"
	// OperatorRolesContextKey 令牌携带的角色
	OperatorRolesContextKey = "operator_roles"
	// OperatorIsSuperContextKey 是否超级管理员
	OperatorIsSuperContextKey = "operator_is_super"
)

// GetOperator 从上下文读取运营账号并统一处理错误响应。
func GetOperator(c *gin.Context) (string, bool) {
	value, exists := c.Get(OperatorContextKey)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return "", false
	}
	operator, ok := value.(string)
	if !ok || strings.TrimSpace(operator) == "" {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return "", false
	}
	return operator, true
}
