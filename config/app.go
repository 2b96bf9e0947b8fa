// Package config 站点配置信息
package config

import "cinepay/pkg/config"

func init() {
	config.Add("app", func() map[string]interface{} {
		return map[string]interface{}{

			// 应用名称
			"name": config.Env("APP_NAME", "Cinepay"),

			// 当前环境，用以区分多环境，一般为 local, stage, production, test
			"env": config.Env("APP_ENV", "production"),

			// 是否进入调试模式
			"debug": config.Env("APP_DEBUG", false),

			// 应用服务端口
			"port": config.Env("APP_PORT", "3003"),

			// 设置时区，网关签名里的时间戳会使用到
			"timezone": config.Env("TIMEZONE", "Asia/Ho_Chi_Minh"),

			// 限流格式为每小时请求数
			"api_rate_limit":      config.Env("API_RATE_LIMIT", "10000"),
			"callback_rate_limit": config.Env("CALLBACK_RATE_LIMIT", "60000"),

			// 支付完成后浏览器跳转的前端页面
			"frontend_success_url": config.Env("FRONTEND_SUCCESS_URL", ""),
			"frontend_failed_url":  config.Env("FRONTEND_FAILED_URL", ""),
		}
	})
}
