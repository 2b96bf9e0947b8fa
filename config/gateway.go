package config

import "cinepay/pkg/config"

func init() {
	config.Add("gateway", func() map[string]interface{} {
		return map[string]interface{}{

			// MoMo 钱包
			"momo": map[string]interface{}{
				"partner_code": config.Env("MOMO_PARTNER_CODE", ""),
				"access_key":   config.Env("MOMO_ACCESS_KEY", ""),
				"secret_key":   config.Env("MOMO_SECRET_KEY", ""),
				"endpoint":     config.Env("MOMO_ENDPOINT", ""),
				// 用户支付完成后 MoMo 跳转回来的前端地址
				"redirect_url": config.Env("MOMO_RETURN_URL", ""),
				// MoMo 服务端 IPN 回调地址
				"ipn_url": config.Env("MOMO_CALLBACK_URL", ""),
			},

			// ZaloPay
			"zalopay": map[string]interface{}{
				"app_id": config.Env("ZALOPAY_APP_ID", ""),
				// key1 签发下单请求，key2 校验回调，两把不同的密钥
				"key1":         config.Env("ZALOPAY_KEY1", ""),
				"key2":         config.Env("ZALOPAY_KEY2", ""),
				"endpoint":     config.Env("ZALOPAY_ENDPOINT", ""),
				"callback_url": config.Env("ZALOPAY_CALLBACK_URL", ""),
			},

			// VNPay
			"vnpay": map[string]interface{}{
				"tmn_code":    config.Env("VNPAY_TMN_CODE", ""),
				"hash_secret": config.Env("VNPAY_HASH_SECRET", ""),
				"url":         config.Env("VNPAY_URL", ""),
				"return_url":  config.Env("VNPAY_RETURN_URL", ""),
			},
		}
	})
}
