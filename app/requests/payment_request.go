package requests

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"
)

// CreatePaymentRequest 创建支付的请求体
type CreatePaymentRequest struct {
	BookingID     string                 `json:"bookingId" valid:"required"`
	BookingCode   string                 `json:"bookingCode"`
	Amount        int64                  `json:"amount"`
	Method        string                 `json:"method" valid:"required"`
	CustomerName  string                 `json:"customerName"`
	CustomerPhone string                 `json:"customerPhone"`
	CustomerEmail string                 `json:"customerEmail"`
	BankCode      string                 `json:"bankCode"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// ValidateCreatePayment 绑定并校验创建支付的请求
// 金额上限和方法合法性的业务校验在引擎层，这里只拦明显的坏请求
func ValidateCreatePayment(c *gin.Context) (*CreatePaymentRequest, error) {
	var req CreatePaymentRequest

	// 1. 首先绑定 JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败: %w", err)
	}

	// 2. 验证规则
	// customerEmail 是可选字段，govalidator 对空值也会跑 email 规则，不放进规则表
	rules := govalidator.MapData{
		"bookingId": []string{"required"},
		"method":    []string{"required", "in:cash,momo,zalopay,vnpay,bank"},
	}

	// 3. 验证消息
	messages := govalidator.MapData{
		"bookingId": []string{
			"required:Thiếu thông tin thanh toán bắt buộc!",
		},
		"method": []string{
			"required:Thiếu thông tin thanh toán bắt buộc!",
			"in:Phương thức thanh toán không hợp lệ!",
		},
	}

	if err := ValidateStruct(&req, rules, messages); err != nil {
		if verr, ok := err.(ValidationError); ok {
			return nil, fmt.Errorf("%s", verr.First())
		}
		return nil, err
	}

	// 4. 金额必须为正，govalidator 的数字规则对 int64 不友好，单独校验
	if req.Amount <= 0 {
		return nil, fmt.Errorf("Số tiền không hợp lệ!")
	}

	return &req, nil
}
