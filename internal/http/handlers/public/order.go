package public

import (
	"github.com/matajir-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetOrder 按订单号查询订单（不含卡码）
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.CheckoutService.GetOrder(c.Request.Context(), c.Param("order_no"))
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules)
		return
	}
	response.Success(c, order)
}

// RevealOrderCodes 展示订单卡码，首次展示后订单不可再作废
func (h *Handler) RevealOrderCodes(c *gin.Context) {
	orderNo := c.Param("order_no")
	codes, err := h.CheckoutService.RevealCodes(c.Request.Context(), orderNo)
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules)
		return
	}
	response.Success(c, gin.H{
		"order_no": orderNo,
		"codes":    codes,
	})
}
