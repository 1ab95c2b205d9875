package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/matajir-next/internal/models"
	"github.com/matajir-next/internal/repository"

	"github.com/shopspring/decimal"
)

var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,63}$`)

// ProductService 商品业务服务
type ProductService struct {
	store repository.InventoryStore
}

// NewProductService 创建商品服务
func NewProductService(store repository.InventoryStore) *ProductService {
	return &ProductService{store: store}
}

// CreateProductInput 创建商品输入
type CreateProductInput struct {
	ID                string
	Name              string
	Category          string
	PriceAmount       decimal.Decimal
	LowStockThreshold int
}

// Create 创建商品，库存计数从 0 开始，只能通过导入卡码增加
func (s *ProductService) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	id := strings.TrimSpace(input.ID)
	if !productIDPattern.MatchString(id) {
		return nil, invalidRequest("product id %q is invalid", input.ID)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalidRequest("product name is required")
	}
	price := input.PriceAmount.Round(2)
	if price.IsNegative() {
		return nil, invalidRequest("product price must not be negative")
	}
	if input.LowStockThreshold < 0 {
		return nil, invalidRequest("low stock threshold must not be negative")
	}

	existing, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, newStorageError("get product", err)
	}
	if existing != nil {
		return nil, ErrProductExists
	}

	product := &models.Product{
		ID:                id,
		Name:              name,
		Category:          strings.TrimSpace(input.Category),
		PriceAmount:       models.NewMoneyFromDecimal(price),
		LowStockThreshold: input.LowStockThreshold,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, newStorageError("create product", err)
	}
	return product, nil
}

// Get 获取商品
func (s *ProductService) Get(ctx context.Context, productID string) (*models.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, invalidRequest("product id is required")
	}
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, newStorageError("get product", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// List 列出全部商品
func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, newStorageError("list products", err)
	}
	return products, nil
}
