package repository

import (
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// inClauseChunkSize IN 查询单批参数上限，sqlite 默认变量上限较低
func inClauseChunkSize(db *gorm.DB) int {
	return inClauseChunkSizeByDialect(dbDialectName(db))
}

func inClauseChunkSizeByDialect(dialect string) int {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return 5000
	default:
		return 500
	}
}

// chunkValues 按固定大小切分列表，用于分批绑定 IN 参数
func chunkValues[T any](values []T, size int) [][]T {
	if size <= 0 {
		size = len(values)
	}
	chunks := make([][]T, 0, len(values)/max(size, 1)+1)
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
