package payments

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"cinepay/pkg/config"
	paymentsvc "cinepay/pkg/payment"
)

// ReturnsController 浏览器回跳控制器
// 处理结果以 302 跳回前端页面，成功和失败各有一个落地页
type ReturnsController struct {
	service *paymentsvc.Service
}

// NewReturnsController 创建回跳控制器
func NewReturnsController(service *paymentsvc.Service) *ReturnsController {
	return &ReturnsController{service: service}
}

// MomoReturn MoMo 支付完成后的浏览器回跳
func (rc *ReturnsController) MomoReturn(c *gin.Context) {
	outcome := rc.service.HandleMomoReturn(
		c.Request.Context(),
		c.Query("orderId"),
		c.Query("resultCode"),
		c.Query("message"),
	)
	rc.redirect(c, outcome)
}

// ZaloPayReturn ZaloPay 支付完成后的浏览器回跳
func (rc *ReturnsController) ZaloPayReturn(c *gin.Context) {
	outcome := rc.service.HandleZaloPayReturn(
		c.Request.Context(),
		c.Query("apptransid"),
		c.Query("status"),
	)
	rc.redirect(c, outcome)
}

// VNPayReturn VNPay 的回跳，带签名，既是回跳也是对账凭据
func (rc *ReturnsController) VNPayReturn(c *gin.Context) {
	query := map[string]string{}
	for k, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			query[k] = values[0]
		}
	}

	outcome := rc.service.HandleVNPayReturn(c.Request.Context(), query)
	rc.redirect(c, outcome)
}

// redirect 按处理结果拼前端落地页地址
func (rc *ReturnsController) redirect(c *gin.Context, outcome *paymentsvc.ReturnOutcome) {
	if outcome.OK {
		params := url.Values{}
		params.Set("bookingId", outcome.BookingID)
		params.Set("paymentCode", outcome.PaymentCode)
		params.Set("amount", cast.ToString(outcome.Amount))
		c.Redirect(http.StatusFound, config.GetString("app.frontend_success_url")+"?"+params.Encode())
		return
	}

	params := url.Values{}
	params.Set("error", outcome.ErrorCode)
	if outcome.BookingID != "" {
		params.Set("bookingId", outcome.BookingID)
	}
	if outcome.ResponseCode != "" {
		params.Set("responseCode", outcome.ResponseCode)
	}
	if outcome.Message != "" {
		params.Set("message", outcome.Message)
	}
	c.Redirect(http.StatusFound, config.GetString("app.frontend_failed_url")+"?"+params.Encode())
}
