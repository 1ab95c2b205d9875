package cache

import "fmt"

const inventoryStatsAllKey = "inventory:stats:all"

// InventoryStatsKey 单个商品库存统计缓存键
func InventoryStatsKey(productID string) string {
	return fmt.Sprintf("inventory:stats:%s", productID)
}

// InventoryStatsAllKey 全部商品库存统计缓存键
func InventoryStatsAllKey() string {
	return inventoryStatsAllKey
}

// InventoryStatsKeys 商品卡码变动后需要失效的缓存键
func InventoryStatsKeys(productID string) []string {
	return []string{InventoryStatsKey(productID), inventoryStatsAllKey}
}
