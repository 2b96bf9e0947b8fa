package payments

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"cinepay/app/models/payment"
	"cinepay/pkg/gateway/momo"
	"cinepay/pkg/gateway/zalopay"
	paymentsvc "cinepay/pkg/payment"
)

// CallbacksController 网关服务端回调控制器
// 应答必须按各网关要求的形态返回，网关据此决定是否重发
type CallbacksController struct {
	service *paymentsvc.Service
}

// NewCallbacksController 创建回调控制器
func NewCallbacksController(service *paymentsvc.Service) *CallbacksController {
	return &CallbacksController{service: service}
}

// MomoNotify MoMo 服务端 IPN 入口
// 原始报文同时解析成结构体（验签用）和 map（审计留存用）
func (cc *CallbacksController) MomoNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, &paymentsvc.MomoAck{ResultCode: 1, Message: "Invalid signature"})
		return
	}

	var notification momo.Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		c.JSON(http.StatusBadRequest, &paymentsvc.MomoAck{ResultCode: 1, Message: "Invalid signature"})
		return
	}

	raw := payment.JSON{}
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = payment.JSON{}
	}

	status, ack := cc.service.HandleMomoNotify(c.Request.Context(), &notification, raw)
	c.JSON(status, ack)
}

// ZaloPayNotify ZaloPay 服务端回调入口
// ZaloPay 对回调永远期待 HTTP 200，结果语义全在 return_code 里
func (cc *CallbacksController) ZaloPayNotify(c *gin.Context) {
	var cb zalopay.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.JSON(http.StatusOK, &paymentsvc.ZaloPayAck{ReturnCode: -1, ReturnMessage: "Missing required fields"})
		return
	}

	ack := cc.service.HandleZaloPayNotify(c.Request.Context(), &cb)
	c.JSON(http.StatusOK, ack)
}
