package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"cinepay/app/http/controllers/api/v1/payments"
	"cinepay/app/http/middlewares"
	"cinepay/pkg/config"
	paymentsvc "cinepay/pkg/payment"
	"cinepay/pkg/response"
)

// 路由限流配置
const (
	// 💳 创建支付限流：每小时每IP 100 请求
	CreatePaymentLimit = "100-H"
	// 🔍 查询支付限流：每分钟每IP 300 请求
	QueryPaymentLimit = "300-M"
)

// RegisterAPIRoutes 注册所有 API 路由
func RegisterAPIRoutes(r *gin.Engine, service *paymentsvc.Service, repo paymentsvc.Repository) {
	// ❤️ 健康检查，不挂中间件
	r.GET("/health", func(c *gin.Context) {
		response.JSON(c, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// 🌍 全局限流按小时计，网关回调限流按小时计且配额更宽，网关会突发重试
	globalLimit := config.GetString("app.api_rate_limit") + "-H"
	callbackLimit := config.GetString("app.callback_rate_limit") + "-H"

	api := r.Group("/api")

	api.Use(
		middlewares.Recovery(),
		middlewares.SecurityHeaders(),
		middlewares.LimitIP(globalLimit),
		middlewares.Cors(),
	)

	// 💳 支付相关路由
	paymentRoutes := api.Group("/payments")
	{
		pc := payments.NewPaymentsController(service, repo)
		cc := payments.NewCallbacksController(service)
		rc := payments.NewReturnsController(service)

		// 📝 创建支付，只允许携带服务令牌的内部调用
		// POST /api/payments/create
		paymentRoutes.POST("/create",
			middlewares.ServiceAuth(),
			middlewares.LimitIP(CreatePaymentLimit),
			pc.Create,
		)

		// 🔍 查询支付记录
		// GET /api/payments/:id
		paymentRoutes.GET("/:id",
			middlewares.LimitIP(QueryPaymentLimit),
			pc.GetByID,
		)

		// GET /api/payments/code/:code
		paymentRoutes.GET("/code/:code",
			middlewares.LimitIP(QueryPaymentLimit),
			pc.GetByCode,
		)

		// GET /api/payments/booking/:bookingId
		paymentRoutes.GET("/booking/:bookingId",
			middlewares.LimitIP(QueryPaymentLimit),
			pc.GetByBooking,
		)

		// 📡 MoMo 服务端 IPN 与浏览器回跳
		paymentRoutes.POST("/callback/momo",
			middlewares.LimitPerRoute(callbackLimit),
			cc.MomoNotify,
		)
		paymentRoutes.GET("/return/momo",
			middlewares.LimitPerRoute(callbackLimit),
			rc.MomoReturn,
		)

		// 📡 ZaloPay 服务端回调与浏览器回跳
		paymentRoutes.POST("/callback/zalopay",
			middlewares.LimitPerRoute(callbackLimit),
			cc.ZaloPayNotify,
		)
		paymentRoutes.GET("/return/zalopay",
			middlewares.LimitPerRoute(callbackLimit),
			rc.ZaloPayReturn,
		)

		// 📡 VNPay 只有带签名的浏览器回跳，没有独立 IPN
		paymentRoutes.GET("/callback/vnpay",
			middlewares.LimitPerRoute(callbackLimit),
			rc.VNPayReturn,
		)
	}
}
