package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InventoryMetrics 库存相关指标
type InventoryMetrics struct {
	allocations      metric.Int64Counter
	allocatedCodes   metric.Int64Counter
	syntheticCodes   metric.Int64Counter
	conflictRetries  metric.Int64Counter
	releasedCodes    metric.Int64Counter
	importedCodes    metric.Int64Counter
	duplicateCodes   metric.Int64Counter
	checkoutRollback metric.Int64Counter
}

// NewInventoryMetrics 在指定 meter 上注册库存指标
func NewInventoryMetrics(meter metric.Meter) (*InventoryMetrics, error) {
	m := &InventoryMetrics{}
	var err error
	if m.allocations, err = meter.Int64Counter("inventory.allocations",
		metric.WithDescription("Allocation attempts by outcome")); err != nil {
		return nil, err
	}
	if m.allocatedCodes, err = meter.Int64Counter("inventory.codes.allocated",
		metric.WithDescription("Codes transitioned to sold")); err != nil {
		return nil, err
	}
	if m.syntheticCodes, err = meter.Int64Counter("inventory.codes.synthetic",
		metric.WithDescription("Codes generated by the stockout fallback")); err != nil {
		return nil, err
	}
	if m.conflictRetries, err = meter.Int64Counter("inventory.allocation.conflict_retries",
		metric.WithDescription("Allocation retries after losing a concurrent race")); err != nil {
		return nil, err
	}
	if m.releasedCodes, err = meter.Int64Counter("inventory.codes.released",
		metric.WithDescription("Codes returned to available by compensation")); err != nil {
		return nil, err
	}
	if m.importedCodes, err = meter.Int64Counter("inventory.codes.imported",
		metric.WithDescription("Codes inserted by bulk import")); err != nil {
		return nil, err
	}
	if m.duplicateCodes, err = meter.Int64Counter("inventory.codes.duplicates",
		metric.WithDescription("Codes skipped as duplicates during import")); err != nil {
		return nil, err
	}
	if m.checkoutRollback, err = meter.Int64Counter("checkout.rollbacks",
		metric.WithDescription("Checkouts rolled back after a line failed")); err != nil {
		return nil, err
	}
	return m, nil
}

func productAttr(productID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("product_id", productID))
}

// RecordAllocation 记录一次分配结果
func (m *InventoryMetrics) RecordAllocation(ctx context.Context, productID, outcome string, codes, synthetic int) {
	if m == nil {
		return
	}
	m.allocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("product_id", productID),
		attribute.String("outcome", outcome),
	))
	if codes > 0 {
		m.allocatedCodes.Add(ctx, int64(codes), productAttr(productID))
	}
	if synthetic > 0 {
		m.syntheticCodes.Add(ctx, int64(synthetic), productAttr(productID))
	}
}

// RecordConflictRetry 记录并发冲突重试
func (m *InventoryMetrics) RecordConflictRetry(ctx context.Context, productID string) {
	if m == nil {
		return
	}
	m.conflictRetries.Add(ctx, 1, productAttr(productID))
}

// RecordRelease 记录补偿释放数量
func (m *InventoryMetrics) RecordRelease(ctx context.Context, productID string, released int) {
	if m == nil || released <= 0 {
		return
	}
	m.releasedCodes.Add(ctx, int64(released), productAttr(productID))
}

// RecordImport 记录导入结果
func (m *InventoryMetrics) RecordImport(ctx context.Context, productID string, inserted, duplicates int) {
	if m == nil {
		return
	}
	if inserted > 0 {
		m.importedCodes.Add(ctx, int64(inserted), productAttr(productID))
	}
	if duplicates > 0 {
		m.duplicateCodes.Add(ctx, int64(duplicates), productAttr(productID))
	}
}

// RecordCheckoutRollback 记录下单整体回滚
func (m *InventoryMetrics) RecordCheckoutRollback(ctx context.Context, failedProductID string) {
	if m == nil {
		return
	}
	m.checkoutRollback.Add(ctx, 1, metric.WithAttributes(attribute.String("failed_product_id", failedProductID)))
}
