package public

import "github.com/quickbite/internal/provider"

// Handler 用户侧接口处理器入口
// 说明：购物车、拼单、下单、支付回跳与实时推送。
type Handler struct {
	*provider.Container
}

// New 创建用户侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
