package public

import (
	"github.com/matajir-next/internal/http/response"
	"github.com/matajir-next/internal/models"
	"github.com/matajir-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutItemRequest 下单行请求
type CheckoutItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// CheckoutRequest 支付确认后的下单请求
type CheckoutRequest struct {
	OrderNo    string                `json:"order_no"`
	UserRef    string                `json:"user_ref"`
	PaymentRef string                `json:"payment_ref"`
	Items      []CheckoutItemRequest `json:"items" binding:"required"`
}

// CheckoutLineView 下单结果行，卡码仅通过展示接口返回
type CheckoutLineView struct {
	ProductID      string                 `json:"product_id"`
	Quantity       int                    `json:"quantity"`
	Kind           service.AllocationKind `json:"kind"`
	SyntheticCount int                    `json:"synthetic_count,omitempty"`
}

// CheckoutResponse 下单响应
type CheckoutResponse struct {
	Order *models.Order      `json:"order"`
	Lines []CheckoutLineView `json:"lines"`
}

// Checkout 下单并占用卡码，任一行失败时整单回滚
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CheckoutItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	result, err := h.CheckoutService.PlaceOrder(c.Request.Context(), service.PlaceOrderInput{
		OrderNo:    req.OrderNo,
		UserRef:    req.UserRef,
		PaymentRef: req.PaymentRef,
		Items:      items,
	})
	if err != nil {
		respondWithMappedError(c, err, nil)
		return
	}

	lines := make([]CheckoutLineView, 0, len(result.Allocations))
	for _, allocation := range result.Allocations {
		lines = append(lines, CheckoutLineView{
			ProductID:      allocation.ProductID,
			Quantity:       len(allocation.Codes),
			Kind:           allocation.Kind,
			SyntheticCount: allocation.SyntheticCount,
		})
	}
	response.Success(c, CheckoutResponse{Order: result.Order, Lines: lines})
}
