package repository

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page      int
	PageSize  int
	Status    string
	UserRef   string
	ProductID string
}
