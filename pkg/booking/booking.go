// Package booking 上游订票服务的出站适配器
//
// 支付完成后单次通知订票服务，失败只记日志不回滚支付状态，
// 漏通知由外部对账任务兜底，这里不做重试队列
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"cinepay/pkg/logger"
)

// Notifier 订票服务通知器
type Notifier struct {
	baseURL      string
	serviceToken string
	client       *resty.Client
}

// Config 通知器配置
type Config struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
}

// PaymentInfo 通知订票服务的支付摘要
type PaymentInfo struct {
	PaymentID     uint64     `json:"paymentId"`
	PaymentCode   string     `json:"paymentCode"`
	Amount        int64      `json:"amount"`
	Provider      string     `json:"provider"`
	TransactionID string     `json:"transactionId"`
	PaidAt        *time.Time `json:"paidAt"`
}

// NewNotifier 创建通知器
func NewNotifier(config Config) *Notifier {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		baseURL:      config.BaseURL,
		serviceToken: config.ServiceToken,
		client:       resty.New().SetTimeout(timeout),
	}
}

// PaymentCompleted 通知订票服务支付已完成
// 返回错误只用于日志，调用方不应据此改变支付记录的状态
func (n *Notifier) PaymentCompleted(ctx context.Context, bookingID string, info *PaymentInfo) error {
	if n.baseURL == "" {
		logger.WarnString("Booking", "Notify", "BOOKING_SERVICE_URL 未配置，跳过通知")
		return nil
	}

	url := fmt.Sprintf("%s/api/bookings/%s/payment-completed", n.baseURL, bookingID)

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Service-Token", n.serviceToken).
		SetBody(info).
		Patch(url)
	if err != nil {
		logger.ErrorString("Booking", "Notify",
			fmt.Sprintf("通知失败 booking:%s error:%v", bookingID, err))
		return err
	}

	if resp.IsError() {
		err := fmt.Errorf("booking service returned status %d", resp.StatusCode())
		logger.ErrorString("Booking", "Notify",
			fmt.Sprintf("通知被拒绝 booking:%s status:%d", bookingID, resp.StatusCode()))
		return err
	}

	logger.InfoString("Booking", "Notify",
		fmt.Sprintf("已通知订票服务 booking:%s payment:%s", bookingID, info.PaymentCode))
	return nil
}
