package shared

import (
	"errors"

	"github.com/matajir-next/internal/http/response"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 与链路信息的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil || c.Request == nil {
		return logger.S()
	}
	log := logger.Ctx(c.Request.Context())
	if logger.RequestIDFromContext(c.Request.Context()) != "" {
		return log
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return log.With("request_id", id)
		}
	}
	return log
}

// RespondError 按消息键返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, key string, err error) {
	RespondErrorWithMsg(c, code, Message(key), err)
}

// RespondErrorWithMsg 返回自定义消息错误响应，并在有原始错误时记录日志。
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		log := RequestLog(c)
		if appErr.ServerSide() {
			log.Errorw("handler_error", "code", appErr.Code, "message", appErr.Message, "error", err)
		} else {
			log.Warnw("handler_rejected", "code", appErr.Code, "message", appErr.Message, "error", err)
		}
	}
	appErr.Write(c)
}

// RespondServiceError 将库存与订单服务错误映射为响应码。
func RespondServiceError(c *gin.Context, err error) {
	var unavailable *service.ItemUnavailableError
	switch {
	case errors.As(err, &unavailable):
		response.ErrorWithData(c, response.CodeConflict, Message("error.item_unavailable"), gin.H{
			"product_id": unavailable.ProductID,
			"requested":  unavailable.Requested,
		})
	case errors.Is(err, service.ErrInsufficientStock):
		RespondError(c, response.CodeConflict, "error.item_unavailable", nil)
	case errors.Is(err, service.ErrProductNotFound):
		RespondError(c, response.CodeNotFound, "error.product_not_found", nil)
	case errors.Is(err, service.ErrInvalidRequest):
		RespondErrorWithMsg(c, response.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrProductExists):
		RespondError(c, response.CodeConflict, "error.product_exists", nil)
	case errors.Is(err, service.ErrOrderNotFound):
		RespondError(c, response.CodeNotFound, "error.order_not_found", nil)
	case errors.Is(err, service.ErrOrderExists):
		RespondError(c, response.CodeConflict, "error.order_exists", nil)
	case errors.Is(err, service.ErrOrderCodesRevealed):
		RespondError(c, response.CodeConflict, "error.order_codes_revealed", nil)
	case errors.Is(err, service.ErrOrderVoided):
		RespondError(c, response.CodeConflict, "error.order_voided", nil)
	default:
		RespondError(c, response.CodeInternal, "error.internal", err)
	}
}
