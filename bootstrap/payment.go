package bootstrap

import (
	"time"

	"cinepay/app/repositories"
	"cinepay/pkg/booking"
	"cinepay/pkg/config"
	"cinepay/pkg/gateway/factory"
	"cinepay/pkg/gateway/types"
	paymentsvc "cinepay/pkg/payment"
	"cinepay/pkg/redis"
)

// SetupPayment 组装对账引擎
// 网关编解码器、仓储、订票通知器和完成信号存储都在这里接线
func SetupPayment() (*paymentsvc.Service, paymentsvc.Repository) {
	repo := repositories.NewPaymentRepository()

	codecs := factory.NewCodecs(types.GatewayConfig{
		Momo: types.MomoConfig{
			PartnerCode: config.GetString("gateway.momo.partner_code"),
			AccessKey:   config.GetString("gateway.momo.access_key"),
			SecretKey:   config.GetString("gateway.momo.secret_key"),
			Endpoint:    config.GetString("gateway.momo.endpoint"),
			RedirectURL: config.GetString("gateway.momo.redirect_url"),
			IPNURL:      config.GetString("gateway.momo.ipn_url"),
		},
		ZaloPay: types.ZaloPayConfig{
			AppID:       config.GetString("gateway.zalopay.app_id"),
			Key1:        config.GetString("gateway.zalopay.key1"),
			Key2:        config.GetString("gateway.zalopay.key2"),
			Endpoint:    config.GetString("gateway.zalopay.endpoint"),
			CallbackURL: config.GetString("gateway.zalopay.callback_url"),
		},
		VNPay: types.VNPayConfig{
			TmnCode:    config.GetString("gateway.vnpay.tmn_code"),
			HashSecret: config.GetString("gateway.vnpay.hash_secret"),
			URL:        config.GetString("gateway.vnpay.url"),
			ReturnURL:  config.GetString("gateway.vnpay.return_url"),
			Timezone:   config.GetString("app.timezone"),
		},
	})

	notifier := booking.NewNotifier(booking.Config{
		BaseURL:      config.GetString("booking.base_url"),
		ServiceToken: config.GetString("booking.service_token"),
		Timeout:      time.Duration(config.GetInt("booking.timeout")) * time.Second,
	})

	// 避免把 nil 指针装进接口，引擎对 nil 信号存储会自动降级为纯数据库轮询
	var signals paymentsvc.SignalStore
	if redis.Redis != nil {
		signals = redis.Redis
	}

	service := paymentsvc.NewService(repo, codecs, notifier, signals)
	return service, repo
}
