package public

import (
	"errors"

	handlershared "github.com/matajir-next/internal/http/handlers/shared"
	"github.com/matajir-next/internal/http/response"
	"github.com/matajir-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

// 前台不区分订单不存在与已作废，避免通过订单号探测订单状态
var orderLookupErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderVoided, code: response.CodeNotFound, key: "error.order_not_found"},
}

// respondWithMappedError 按规则映射错误，未命中时交由通用服务错误映射处理。
func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			handlershared.RespondError(c, rule.code, rule.key, nil)
			return
		}
	}
	handlershared.RespondServiceError(c, err)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}
