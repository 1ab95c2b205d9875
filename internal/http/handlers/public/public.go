package public

import (
	"github.com/matajir-next/internal/http/response"
	"github.com/matajir-next/internal/models"

	"github.com/gin-gonic/gin"
)

// PublicProductView 公共商品响应结构
type PublicProductView struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Category string       `json:"category"`
	Price    models.Money `json:"price"`
	Stock    int          `json:"stock"`
	InStock  bool         `json:"in_stock"`
}

// GetProducts 获取商品与可用库存
func (h *Handler) GetProducts(c *gin.Context) {
	products, err := h.ProductService.List(c.Request.Context())
	if err != nil {
		respondWithMappedError(c, err, nil)
		return
	}
	views := make([]PublicProductView, 0, len(products))
	for _, product := range products {
		views = append(views, PublicProductView{
			ID:       product.ID,
			Name:     product.Name,
			Category: product.Category,
			Price:    product.PriceAmount,
			Stock:    product.Stock,
			InStock:  product.Stock > 0,
		})
	}
	response.Success(c, views)
}
