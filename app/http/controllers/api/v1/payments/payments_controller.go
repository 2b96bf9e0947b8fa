// Package payments 支付记录的对外接口
package payments

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"cinepay/app/requests"
	paymentsvc "cinepay/pkg/payment"
	"cinepay/pkg/response"
)

// PaymentsController 支付创建与查询控制器
type PaymentsController struct {
	service *paymentsvc.Service
	repo    paymentsvc.Repository
}

// NewPaymentsController 创建支付控制器
func NewPaymentsController(service *paymentsvc.Service, repo paymentsvc.Repository) *PaymentsController {
	return &PaymentsController{
		service: service,
		repo:    repo,
	}
}

// Create 创建支付
func (pc *PaymentsController) Create(c *gin.Context) {
	req, err := requests.ValidateCreatePayment(c)
	if err != nil {
		response.Abort400(c, err.Error())
		return
	}

	out, err := pc.service.Create(c.Request.Context(), &paymentsvc.CreateInput{
		BookingID:     req.BookingID,
		BookingCode:   req.BookingCode,
		Amount:        req.Amount,
		Method:        req.Method,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Metadata:      req.Metadata,
		ClientIP:      c.ClientIP(),
		BankCode:      req.BankCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrMissingFields),
			errors.Is(err, paymentsvc.ErrInvalidAmount),
			errors.Is(err, paymentsvc.ErrInvalidMethod),
			errors.Is(err, paymentsvc.ErrBookingAlreadyPaid):
			response.Abort400(c, err.Error())
		default:
			response.ServerError(c, err)
		}
		return
	}

	data := gin.H{
		"paymentId":   out.Payment.ID,
		"paymentCode": out.Payment.PaymentCode,
		"status":      out.Payment.Status,
		"method":      out.Payment.Method,
	}
	// 网关下单失败时没有跳转地址，前端据此提示重试
	if out.PayURL != "" {
		data["paymentUrl"] = out.PayURL
	}
	if out.Payment.ExpiresAt != nil {
		data["expiresAt"] = out.Payment.ExpiresAt
	}

	response.Created(c, data)
}

// GetByID 按记录 ID 查询支付
func (pc *PaymentsController) GetByID(c *gin.Context) {
	id := cast.ToUint64(c.Param("id"))
	if id == 0 {
		response.Abort404(c)
		return
	}

	p, err := pc.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Abort404(c)
			return
		}
		response.ServerError(c, err)
		return
	}

	response.Data(c, p)
}

// GetByCode 按支付单号查询支付
func (pc *PaymentsController) GetByCode(c *gin.Context) {
	p, err := pc.repo.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Abort404(c)
			return
		}
		response.ServerError(c, err)
		return
	}

	response.Data(c, p)
}

// GetByBooking 查询 booking 最近一次支付
func (pc *PaymentsController) GetByBooking(c *gin.Context) {
	p, err := pc.repo.LatestByBookingID(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Abort404(c)
			return
		}
		response.ServerError(c, err)
		return
	}

	response.Data(c, p)
}
