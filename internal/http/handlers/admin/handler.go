package admin

import "github.com/matajir-next/internal/provider"

// Handler 后台管理接口处理器入口
// 说明：该处理器仅用于运营端库存与订单 API。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
