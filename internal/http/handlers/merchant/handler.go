package merchant

import "github.com/quickbite/internal/provider"

// Handler 店主接口处理器入口
// 说明：店主身份由门店 owner_id 与当前用户比对，在 service 层校验。
type Handler struct {
	*provider.Container
}

// New 创建店主处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
