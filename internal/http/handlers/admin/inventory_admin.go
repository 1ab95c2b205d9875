package admin

import (
	"github.com/matajir-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ReconcileInventoryRequest 库存重算请求，ProductID 为空表示全部商品
type ReconcileInventoryRequest struct {
	ProductID string `json:"product_id"`
}

// GetInventoryStats 获取全部商品卡码统计
func (h *Handler) GetInventoryStats(c *gin.Context) {
	stats, err := h.InventoryService.GetAllStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, stats)
}

// ReconcileInventory 按卡码池重算库存计数
func (h *Handler) ReconcileInventory(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	var req ReconcileInventoryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return
		}
	}
	recounts, err := h.InventoryService.Reconcile(c.Request.Context(), req.ProductID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_inventory_reconciled", "operator", operator, "product_id", req.ProductID, "products", len(recounts))
	response.Success(c, recounts)
}
