package admin

import (
	"strings"

	"github.com/matajir-next/internal/http/response"
	"github.com/matajir-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateProductRequest 创建商品请求
type CreateProductRequest struct {
	ID                string `json:"id" binding:"required"`
	Name              string `json:"name" binding:"required"`
	Category          string `json:"category"`
	Price             string `json:"price"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// CreateProduct 创建商品
func (h *Handler) CreateProduct(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	price := decimal.Zero
	if raw := strings.TrimSpace(req.Price); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.price_invalid", nil)
			return
		}
		price = parsed
	}

	product, err := h.ProductService.Create(c.Request.Context(), service.CreateProductInput{
		ID:                req.ID,
		Name:              req.Name,
		Category:          req.Category,
		PriceAmount:       price,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_product_created", "operator", operator, "product_id", product.ID)
	response.Success(c, product)
}

// GetProducts 获取商品列表
func (h *Handler) GetProducts(c *gin.Context) {
	products, err := h.ProductService.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, products)
}
