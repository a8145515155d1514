package public

import (
	"errors"
	"io"

	handlershared "github.com/quickbite/internal/http/handlers/shared"
	"github.com/quickbite/internal/http/response"

	"github.com/gin-gonic/gin"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetUserID(c)
}

func paramUint(c *gin.Context, name string) (uint, bool) {
	return handlershared.ParamUint(c, name)
}

func respondServiceError(c *gin.Context, err error) {
	handlershared.RespondServiceError(c, err)
}

func respondBadRequest(c *gin.Context, err error) {
	handlershared.RequestLog(c).Debugw("handler_bind_failed", "path", c.FullPath(), "error", err)
	response.Error(c, response.CodeBadRequest, "bad_request", "invalid request body")
}

// bindOptionalJSON 允许空请求体
func bindOptionalJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, err)
		return false
	}
	return true
}
