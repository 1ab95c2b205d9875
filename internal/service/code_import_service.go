package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matajir-next/internal/cache"
	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/models"
	"github.com/matajir-next/internal/repository"
	"github.com/matajir-next/internal/telemetry"

	"github.com/google/uuid"
)

// CodeImportService 卡码批量入库服务
type CodeImportService struct {
	store         repository.InventoryStore
	statsCache    cache.Store
	metrics       *telemetry.InventoryMetrics
	maxImportSize int
}

// NewCodeImportService 创建卡码入库服务
func NewCodeImportService(store repository.InventoryStore, statsCache cache.Store, metrics *telemetry.InventoryMetrics, maxImportSize int) *CodeImportService {
	if statsCache == nil {
		statsCache = cache.NoopStore{}
	}
	return &CodeImportService{
		store:         store,
		statsCache:    statsCache,
		metrics:       metrics,
		maxImportSize: maxImportSize,
	}
}

// ImportInput 文本导入输入，每个元素可包含多行卡码
type ImportInput struct {
	ProductID string
	Codes     []string
	BatchNo   string
	Note      string
	CreatedBy string
}

// ImportCSVInput CSV 导入输入
type ImportCSVInput struct {
	ProductID string
	Reader    io.Reader
	BatchNo   string
	Note      string
	CreatedBy string
}

// ImportResult 入库结果
type ImportResult struct {
	Inserted   int               `json:"inserted"`
	Duplicates int               `json:"duplicates"`
	Stock      int64             `json:"stock"`
	Batch      *models.CodeBatch `json:"batch"`
}

// ImportText 导入换行分隔的卡码，已存在的卡码计入重复且不会被覆盖
func (s *CodeImportService) ImportText(ctx context.Context, input ImportInput) (*ImportResult, error) {
	return s.importCodes(ctx, input, constants.CodeBatchSourceManual)
}

// ImportCSV 从 CSV 导入卡码，取表头为 code/secret 的列，无表头时取第一列
func (s *CodeImportService) ImportCSV(ctx context.Context, input ImportCSVInput) (*ImportResult, error) {
	if input.Reader == nil {
		return nil, invalidRequest("csv file is required")
	}
	codes, err := parseCSVCodes(input.Reader)
	if err != nil {
		return nil, invalidRequest("parse csv: %v", err)
	}
	return s.importCodes(ctx, ImportInput{
		ProductID: input.ProductID,
		Codes:     codes,
		BatchNo:   input.BatchNo,
		Note:      input.Note,
		CreatedBy: input.CreatedBy,
	}, constants.CodeBatchSourceCSV)
}

func (s *CodeImportService) importCodes(ctx context.Context, input ImportInput, source string) (*ImportResult, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return nil, invalidRequest("product id is required")
	}
	codes := normalizeCodes(input.Codes)
	if len(codes) == 0 {
		return nil, invalidRequest("no codes to import")
	}
	if s.maxImportSize > 0 && len(codes) > s.maxImportSize {
		return nil, invalidRequest("import size %d exceeds limit %d", len(codes), s.maxImportSize)
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, newStorageError("get product", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	batchNo := strings.TrimSpace(input.BatchNo)
	if batchNo == "" {
		batchNo = generateBatchNo()
	}
	batch := &models.CodeBatch{
		ProductID:  productID,
		BatchNo:    batchNo,
		Source:     source,
		TotalCount: len(codes),
		Note:       strings.TrimSpace(input.Note),
		CreatedBy:  strings.TrimSpace(input.CreatedBy),
	}

	result, err := s.store.Insert(ctx, repository.InsertRequest{
		ProductID: productID,
		Codes:     codes,
		Batch:     batch,
	})
	if err != nil {
		if errors.Is(err, repository.ErrProductMissing) {
			return nil, ErrProductNotFound
		}
		return nil, newStorageError("insert codes", err)
	}

	if err := s.statsCache.Del(ctx, cache.InventoryStatsKeys(productID)...); err != nil {
		logger.Ctx(ctx).Warnw("inventory_stats_cache_invalidate_failed", "product_id", productID, "error", err)
	}
	s.metrics.RecordImport(ctx, productID, result.Inserted, result.Duplicates)
	logger.Ctx(ctx).Infow("inventory_codes_imported",
		"product_id", productID,
		"batch_no", batch.BatchNo,
		"source", source,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"stock", result.Stock,
	)

	return &ImportResult{
		Inserted:   result.Inserted,
		Duplicates: result.Duplicates,
		Stock:      result.Stock,
		Batch:      batch,
	}, nil
}

// normalizeCodes 按行拆分并去除首尾空白，批内重复保留以便计入重复数
func normalizeCodes(values []string) []string {
	result := make([]string, 0, len(values))
	for _, val := range values {
		for _, line := range strings.Split(val, "\n") {
			trimmed := strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
			if trimmed == "" {
				continue
			}
			result = append(result, trimmed)
		}
	}
	return result
}

func parseCSVCodes(reader io.Reader) ([]string, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1
	var (
		codes      []string
		headerRead bool
		codeIdx    = 0
	)
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}
		if !headerRead {
			headerRead = true
			skipRow := false
			for i, col := range record {
				name := strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
				if strings.EqualFold(name, "code") || strings.EqualFold(name, "secret") {
					codeIdx = i
					skipRow = true
					break
				}
			}
			if skipRow {
				continue
			}
		}
		if codeIdx >= len(record) {
			continue
		}
		code := strings.TrimSpace(strings.TrimPrefix(record[codeIdx], "\ufeff"))
		if code == "" {
			continue
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func generateBatchNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("BATCH-%s-%s", now, strings.ToUpper(uuid.NewString()[:8]))
}
