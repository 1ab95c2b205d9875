package repository

import "gorm.io/gorm"

// 仓储层分页上限，防止导出类查询误传超大 page_size
const maxListPageSize = 500

// applyPagination 按页截取，pageSize<=0 表示不分页
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

// pageWindow 计算内存分页区间 [start, end)
func pageWindow(total, page, pageSize int) (int, int) {
	if pageSize <= 0 {
		return 0, total
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}
