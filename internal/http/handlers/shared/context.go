package shared

import (
	"strconv"
	"strings"

	"github.com/quickbite/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetContextUint 从上下文读取 uint 值并统一处理错误响应。
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, "unauthorized")
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		if v == 0 {
			response.Unauthorized(c, "unauthorized")
			return 0, false
		}
		return v, true
	case int:
		if v <= 0 {
			response.BadRequest(c, key+" is invalid")
			return 0, false
		}
		return uint(v), true
	case float64:
		if v <= 0 {
			response.BadRequest(c, key+" is invalid")
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeInternal, "internal_server_error", key+" has an unexpected type", nil)
		return 0, false
	}
}

// GetUserID 当前登录用户
func GetUserID(c *gin.Context) (uint, bool) {
	return GetContextUint(c, "user_id")
}

// ParamUint 解析路径参数
func ParamUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, name+" is invalid")
		return 0, false
	}
	return uint(id), true
}
