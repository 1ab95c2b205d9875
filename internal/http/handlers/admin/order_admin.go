package admin

import (
	"strings"

	handlershared "github.com/matajir-next/internal/http/handlers/shared"
	"github.com/matajir-next/internal/http/response"
	"github.com/matajir-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetOrders 获取订单列表
func (h *Handler) GetOrders(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)

	orders, total, err := h.CheckoutService.ListOrders(c.Request.Context(), repository.OrderListFilter{
		Page:      page,
		PageSize:  pageSize,
		Status:    strings.TrimSpace(c.Query("status")),
		UserRef:   strings.TrimSpace(c.Query("user_ref")),
		ProductID: strings.TrimSpace(c.Query("product_id")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetOrder 获取订单详情（不含卡码）
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.CheckoutService.GetOrder(c.Request.Context(), c.Param("order_no"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// VoidOrder 作废未展示卡码的订单并退回库存
func (h *Handler) VoidOrder(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	result, err := h.CheckoutService.VoidOrder(c.Request.Context(), c.Param("order_no"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_order_voided", "operator", operator, "order_no", result.OrderNo, "released", result.Released)
	response.Success(c, result)
}
