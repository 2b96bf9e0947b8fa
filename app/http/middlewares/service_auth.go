package middlewares

import (
	"crypto/subtle"

	"cinepay/pkg/config"
	"cinepay/pkg/logger"
	"cinepay/pkg/response"

	"github.com/gin-gonic/gin"
)

// ServiceAuth 服务间调用鉴权
// 校验 X-Service-Token 头；未配置 token 时放行但告警，
// 方便本地联调，生产环境必须配置
func ServiceAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := config.GetString("booking.service_token")
		if token == "" {
			logger.WarnString("ServiceAuth", "Check", "SERVICE_TOKEN 未配置，跳过服务间鉴权")
			c.Next()
			return
		}

		provided := c.GetHeader("X-Service-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			response.Abort401(c)
			return
		}

		c.Next()
	}
}
