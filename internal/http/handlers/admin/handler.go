package admin

import "github.com/pawpledge/internal/provider"

// Handler 后台管理接口处理器入口
// 说明：该处理器仅用于管理员与版主 API，权限由路由层 casbin 中间件校验。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
