package config

import "cinepay/pkg/config"

func init() {
	config.Add("booking", func() map[string]interface{} {
		return map[string]interface{}{
			// 上游订票服务
			"base_url": config.Env("BOOKING_SERVICE_URL", ""),

			// 服务间调用的共享凭证，通过 X-Service-Token 头传递
			"service_token": config.Env("SERVICE_TOKEN", ""),

			// 通知订票服务的超时时间，单位：秒
			"timeout": config.Env("BOOKING_TIMEOUT", 10),
		}
	})
}
