package admin

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	handlershared "github.com/matajir-next/internal/http/handlers/shared"
	"github.com/matajir-next/internal/http/response"
	"github.com/matajir-next/internal/service"

	"github.com/gin-gonic/gin"
)

// maxImportFileBytes CSV 上传大小上限
const maxImportFileBytes = 10 << 20

// ImportCodesRequest 录入卡码请求，Codes 与 Text 至少提供一个
type ImportCodesRequest struct {
	Codes   []string `json:"codes"`
	Text    string   `json:"text"`
	BatchNo string   `json:"batch_no"`
	Note    string   `json:"note"`
}

// ImportCodes 录入卡码（JSON 数组或换行分隔文本）
func (h *Handler) ImportCodes(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	var req ImportCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	codes := req.Codes
	if strings.TrimSpace(req.Text) != "" {
		codes = append(codes, req.Text)
	}

	result, err := h.CodeImportService.ImportText(c.Request.Context(), service.ImportInput{
		ProductID: c.Param("id"),
		Codes:     codes,
		BatchNo:   req.BatchNo,
		Note:      req.Note,
		CreatedBy: operator,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// ImportCodesCSV 上传 CSV 导入卡码
func (h *Handler) ImportCodesCSV(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.file_required", nil)
		return
	}
	if file.Size > maxImportFileBytes {
		respondError(c, response.CodeBadRequest, "error.file_too_large", nil)
		return
	}
	reader, err := file.Open()
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.file_required", err)
		return
	}
	defer reader.Close()

	result, err := h.CodeImportService.ImportCSV(c.Request.Context(), service.ImportCSVInput{
		ProductID: c.Param("id"),
		Reader:    reader,
		BatchNo:   strings.TrimSpace(c.PostForm("batch_no")),
		Note:      strings.TrimSpace(c.PostForm("note")),
		CreatedBy: operator,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// GetCodes 获取商品卡码，status 为空时按可用/已售分组返回
func (h *Handler) GetCodes(c *gin.Context) {
	productID := c.Param("id")
	status := strings.TrimSpace(c.Query("status"))
	if status == "" {
		codes, err := h.InventoryService.ListCodes(c.Request.Context(), productID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		response.Success(c, codes)
		return
	}
	items, err := h.InventoryService.ListCodeDetails(c.Request.Context(), productID, status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, items)
}

// ExportCodes 导出卡码文本
func (h *Handler) ExportCodes(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	productID := c.Param("id")
	payload, err := h.InventoryService.ExportCodes(c.Request.Context(), productID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_codes_exported", "operator", operator, "product_id", productID)
	filename := fmt.Sprintf("codes_%s_%s.txt", productID, time.Now().Format("20060102150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", payload)
}

// GetCodeStats 获取单个商品卡码统计
func (h *Handler) GetCodeStats(c *gin.Context) {
	stats, err := h.InventoryService.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, stats)
}

// GetCodeBatches 获取导入批次列表
func (h *Handler) GetCodeBatches(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)

	batches, total, err := h.InventoryService.ListBatches(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, batches, response.BuildPagination(page, pageSize, total))
}
