// Package payment 支付对账状态机
//
// 状态流转只发生在这里：创建请求、网关服务端回调（IPN）、浏览器回跳
// 三类入口并发且无序到达，completed 的流转依赖仓库层的条件更新保证恰好一次，
// 回跳永远不以未签名的参数为准
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cinepay/app/models/payment"
	"cinepay/pkg/booking"
	"cinepay/pkg/gateway/factory"
	"cinepay/pkg/gateway/gatewayutil"
	"cinepay/pkg/gateway/momo"
	"cinepay/pkg/gateway/types"
	"cinepay/pkg/gateway/zalopay"
	"cinepay/pkg/logger"
)

// 创建请求的校验错误，消息直接面向调用方
var (
	ErrMissingFields      = errors.New("Thiếu thông tin thanh toán bắt buộc!")
	ErrInvalidAmount      = errors.New("Số tiền không hợp lệ!")
	ErrInvalidMethod      = errors.New("Phương thức thanh toán không hợp lệ!")
	ErrBookingAlreadyPaid = errors.New("Booking này đã được thanh toán!")
)

// 回跳等待参数：IPN 和回跳赛跑时，回跳最多等 10 次 × 500ms
const (
	waitAttempts = 10
	waitInterval = 500 * time.Millisecond
)

// 过期的 pending 记录保留 24 小时后软删除
const expiredRetention = 24 * time.Hour

// 支付完成信号在 redis 里的保留时间
const signalTTL = 10 * time.Minute

// Repository 支付记录仓储接口
type Repository interface {
	Create(ctx context.Context, p *payment.Payment) error
	Update(ctx context.Context, p *payment.Payment) error
	GetByID(ctx context.Context, id uint64) (*payment.Payment, error)
	GetByCode(ctx context.Context, code string) (*payment.Payment, error)
	LatestByBookingID(ctx context.Context, bookingID string) (*payment.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error)
	GetByCorrelationID(ctx context.Context, transID string) (*payment.Payment, error)
	HasCompletedForBooking(ctx context.Context, bookingID string) (bool, error)
	MarkCompleted(ctx context.Context, p *payment.Payment, transactionID string, gatewayResponse payment.JSON) (bool, error)
	MarkFailed(ctx context.Context, p *payment.Payment, gatewayResponse payment.JSON) (bool, error)
	SweepExpired(ctx context.Context, graceDuration time.Duration) (int64, error)
}

// Notifier 订票服务通知接口
type Notifier interface {
	PaymentCompleted(ctx context.Context, bookingID string, info *booking.PaymentInfo) error
}

// SignalStore 支付完成信号存储，跨实例时回跳等待可以先看信号再查库
type SignalStore interface {
	Set(key string, value interface{}, expiration time.Duration) bool
	Has(key string) bool
}

// Service 对账引擎
type Service struct {
	repo     Repository
	codecs   *factory.Codecs
	notifier Notifier
	signals  SignalStore
}

// NewService 创建对账引擎
// notifier 和 signals 允许为 nil（测试或未配置时自动降级）
func NewService(repo Repository, codecs *factory.Codecs, notifier Notifier, signals SignalStore) *Service {
	return &Service{
		repo:     repo,
		codecs:   codecs,
		notifier: notifier,
		signals:  signals,
	}
}

// CreateInput 创建支付的入参
type CreateInput struct {
	BookingID     string
	BookingCode   string
	Amount        int64
	Method        string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Metadata      map[string]interface{}
	ClientIP      string
	BankCode      string
}

// CreateOutput 创建支付的结果
// 网关下单失败时 Payment 仍然是落库的 pending 记录，PayURL 为空，
// 调用方应提示用户重试而不是当作整体失败
type CreateOutput struct {
	Payment *payment.Payment
	PayURL  string
}

// Create 创建支付
// cash 直接 completed 不走网关；在线方式落库 pending 后再请求网关，
// 网关失败不回滚记录（上游 booking 已经存在，不能变成孤儿）
func (s *Service) Create(ctx context.Context, in *CreateInput) (*CreateOutput, error) {
	if in.BookingID == "" || in.Method == "" {
		return nil, ErrMissingFields
	}
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	metadata := payment.JSON{}
	for k, v := range in.Metadata {
		metadata[k] = v
	}

	p := &payment.Payment{
		PaymentCode:   gatewayutil.GeneratePaymentCode(),
		BookingID:     in.BookingID,
		BookingCode:   in.BookingCode,
		Amount:        in.Amount,
		Method:        in.Method,
		Status:        string(payment.StatusPending),
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		CustomerEmail: in.CustomerEmail,
		Metadata:      metadata,
	}
	if !p.ValidateMethod() {
		return nil, ErrInvalidMethod
	}

	// 同一 booking 已有支付成功的记录则拒绝重复创建
	paid, err := s.repo.HasCompletedForBooking(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ErrBookingAlreadyPaid
	}

	now := time.Now()
	if payment.Method(in.Method) == payment.MethodCash {
		// 现金当场收讫，没有网关往返，交易号由本服务生成
		p.Status = string(payment.StatusCompleted)
		p.TransactionID = gatewayutil.GenerateTransactionID()
		p.PaidAt = &now
	} else {
		expiresAt := now.Add(payment.PendingTimeout)
		p.ExpiresAt = &expiresAt
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.InfoString("Payment", "Create",
		fmt.Sprintf("支付记录已创建 code:%s booking:%s method:%s", p.PaymentCode, p.BookingID, p.Method))

	if p.IsCompleted() {
		return &CreateOutput{Payment: p}, nil
	}

	creator, err := s.codecs.Creator(types.Provider(in.Method))
	if err != nil {
		// bank 等暂无线上渠道的方式：保留 pending 记录，无跳转地址
		return &CreateOutput{Payment: p}, nil
	}

	orderRef := in.BookingCode
	if orderRef == "" {
		orderRef = in.BookingID
	}

	result := creator.CreatePayment(ctx, &types.CreateRequest{
		OrderID:   p.PaymentCode,
		Amount:    p.Amount,
		OrderInfo: "Thanh toan dat ve " + orderRef,
		IPAddr:    in.ClientIP,
		BankCode:  in.BankCode,
	})

	if !result.Success {
		// 刻意的部分成功：记录保持 pending，让用户重试发起支付
		logger.ErrorString("Payment", "Create",
			fmt.Sprintf("网关下单失败 code:%s method:%s error:%s", p.PaymentCode, p.Method, result.Err))
		return &CreateOutput{Payment: p}, nil
	}

	// 网关侧关联标识存进 metadata，异步通知和回跳不一定带回支付单号
	switch types.Provider(in.Method) {
	case types.ProviderMomo:
		p.Metadata["request_id"] = result.CorrelationID
	case types.ProviderZaloPay:
		p.Metadata["trans_id"] = result.CorrelationID
	}
	p.Metadata["payment_url"] = result.PayURL
	p.GatewayResponse = result.RawResponse

	if err := s.repo.Update(ctx, p); err != nil {
		logger.ErrorString("Payment", "Create", "保存网关应答失败："+err.Error())
	}

	return &CreateOutput{Payment: p, PayURL: result.PayURL}, nil
}

// MomoAck MoMo IPN 的应答形态
type MomoAck struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// HandleMomoNotify 处理 MoMo 服务端 IPN
// raw 是原始回调报文，验签通过后原样落库留作审计
func (s *Service) HandleMomoNotify(ctx context.Context, n *momo.Notification, raw payment.JSON) (int, *MomoAck) {
	verification := s.codecs.Momo.VerifyNotification(n)
	if !verification.Valid {
		logger.WarnString("Payment", "MomoNotify", "签名校验失败 orderId:"+n.OrderID)
		return 400, &MomoAck{ResultCode: 1, Message: "Invalid signature"}
	}

	p, err := s.repo.GetByCode(ctx, verification.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnString("Payment", "MomoNotify", "支付记录不存在 orderId:"+verification.OrderID)
			return 404, &MomoAck{ResultCode: 2, Message: "Payment not found"}
		}
		logger.ErrorString("Payment", "MomoNotify", err.Error())
		return 500, &MomoAck{ResultCode: 3, Message: "Callback processing failed"}
	}

	// 幂等保护：网关会重发通知，已完成的记录直接确认
	if p.IsCompleted() {
		return 200, &MomoAck{ResultCode: 0, Message: "Already processed"}
	}

	if verification.Success {
		won, err := s.repo.MarkCompleted(ctx, p, verification.TransactionID, raw)
		if err != nil {
			logger.ErrorString("Payment", "MomoNotify", err.Error())
			return 500, &MomoAck{ResultCode: 3, Message: "Callback processing failed"}
		}
		if !won {
			// 竞态输给了另一条通知，视作已处理
			return 200, &MomoAck{ResultCode: 0, Message: "Already processed"}
		}

		s.markSignal(p.PaymentCode)
		s.notifyBooking(ctx, p)

		logger.InfoString("Payment", "MomoNotify", "支付完成 code:"+p.PaymentCode)
		return 200, &MomoAck{ResultCode: 0, Message: "Success"}
	}

	if _, err := s.repo.MarkFailed(ctx, p, raw); err != nil {
		logger.ErrorString("Payment", "MomoNotify", err.Error())
		return 500, &MomoAck{ResultCode: 3, Message: "Callback processing failed"}
	}
	logger.InfoString("Payment", "MomoNotify",
		fmt.Sprintf("支付失败 code:%s resultCode:%s", p.PaymentCode, verification.ResponseCode))
	return 200, &MomoAck{ResultCode: 0, Message: "Failed payment recorded"}
}

// ZaloPayAck ZaloPay 回调的应答形态，网关按 return_code 决定是否重试
type ZaloPayAck struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// HandleZaloPayNotify 处理 ZaloPay 服务端回调
func (s *Service) HandleZaloPayNotify(ctx context.Context, cb *zalopay.Callback) *ZaloPayAck {
	if cb.Data == "" || cb.MAC == "" {
		return &ZaloPayAck{ReturnCode: -1, ReturnMessage: "Missing required fields"}
	}

	verification := s.codecs.ZaloPay.VerifyNotification(cb)
	if !verification.Valid {
		logger.WarnString("Payment", "ZaloPayNotify", "MAC 校验失败")
		return &ZaloPayAck{ReturnCode: -1, ReturnMessage: "Invalid MAC"}
	}

	p, err := s.lookupZaloPay(ctx, verification)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnString("Payment", "ZaloPayNotify", "支付记录不存在 transId:"+verification.CorrelationID)
			return &ZaloPayAck{ReturnCode: 2, ReturnMessage: "Order not found"}
		}
		logger.ErrorString("Payment", "ZaloPayNotify", err.Error())
		return &ZaloPayAck{ReturnCode: 0, ReturnMessage: "Error processing callback"}
	}

	if p.IsCompleted() {
		return &ZaloPayAck{ReturnCode: 1, ReturnMessage: "Already processed"}
	}

	raw := payment.JSON{
		"app_trans_id": verification.CorrelationID,
		"zp_trans_id":  verification.TransactionID,
		"amount":       verification.Amount,
		"data":         cb.Data,
	}

	won, err := s.repo.MarkCompleted(ctx, p, verification.TransactionID, raw)
	if err != nil {
		logger.ErrorString("Payment", "ZaloPayNotify", err.Error())
		return &ZaloPayAck{ReturnCode: 0, ReturnMessage: "Error processing callback"}
	}
	if !won {
		return &ZaloPayAck{ReturnCode: 1, ReturnMessage: "Already processed"}
	}

	s.markSignal(p.PaymentCode)
	s.notifyBooking(ctx, p)

	logger.InfoString("Payment", "ZaloPayNotify", "支付完成 code:"+p.PaymentCode)
	return &ZaloPayAck{ReturnCode: 1, ReturnMessage: "Success"}
}

// lookupZaloPay 先按下单时存的 app_trans_id 找，再退回 app_user 里的支付单号
func (s *Service) lookupZaloPay(ctx context.Context, v *types.Verification) (*payment.Payment, error) {
	p, err := s.repo.GetByCorrelationID(ctx, v.CorrelationID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if v.OrderID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return s.repo.GetByCode(ctx, v.OrderID)
}

// ReturnOutcome 浏览器回跳的处理结果，控制器据此拼前端跳转地址
type ReturnOutcome struct {
	OK          bool
	BookingID   string
	PaymentCode string
	Amount      int64
	// Status 回跳时刻的最终已知状态，等待超时后可能仍是 pending
	Status string

	// 失败侧字段
	ErrorCode    string
	ResponseCode string
	Message      string
}

// HandleVNPayReturn 处理 VNPay 回跳
// VNPay 的回跳自带签名，是三个网关里唯一可以在回跳里直接完成流转的
func (s *Service) HandleVNPayReturn(ctx context.Context, query map[string]string) *ReturnOutcome {
	verification := s.codecs.VNPay.VerifyNotification(query)
	if !verification.Valid {
		logger.WarnString("Payment", "VNPayReturn", "签名校验失败")
		return &ReturnOutcome{ErrorCode: "invalid_signature", Message: "Chữ ký không hợp lệ"}
	}

	p, err := s.repo.GetByCode(ctx, verification.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ReturnOutcome{ErrorCode: "payment_not_found", PaymentCode: verification.OrderID}
		}
		logger.ErrorString("Payment", "VNPayReturn", err.Error())
		return &ReturnOutcome{ErrorCode: "system_error", Message: err.Error()}
	}

	raw := payment.JSON{}
	for k, v := range query {
		raw[k] = v
	}

	if verification.Success {
		if !p.IsCompleted() {
			won, err := s.repo.MarkCompleted(ctx, p, verification.TransactionID, raw)
			if err != nil {
				logger.ErrorString("Payment", "VNPayReturn", err.Error())
				return &ReturnOutcome{ErrorCode: "system_error", Message: err.Error()}
			}
			if won {
				s.markSignal(p.PaymentCode)
				s.notifyBooking(ctx, p)
				logger.InfoString("Payment", "VNPayReturn", "支付完成 code:"+p.PaymentCode)
			}
		}
		return &ReturnOutcome{
			OK:          true,
			BookingID:   p.BookingID,
			PaymentCode: p.PaymentCode,
			Amount:      p.Amount,
			Status:      string(payment.StatusCompleted),
		}
	}

	// 失败/取消：条件更新不会降级已被 IPN 置为 completed 的记录
	if _, err := s.repo.MarkFailed(ctx, p, raw); err != nil {
		logger.ErrorString("Payment", "VNPayReturn", err.Error())
	}
	logger.InfoString("Payment", "VNPayReturn",
		fmt.Sprintf("支付失败 code:%s responseCode:%s", p.PaymentCode, verification.ResponseCode))

	return &ReturnOutcome{
		BookingID:    p.BookingID,
		ErrorCode:    "payment_failed",
		ResponseCode: verification.ResponseCode,
		Message:      VNPayMessage(verification.ResponseCode),
	}
}

// HandleMomoReturn 处理 MoMo 回跳
// MoMo 的回跳参数没有签名保障，这里绝不据此改状态，
// 成功码只代表可以开始等 IPN 把记录翻成 completed
func (s *Service) HandleMomoReturn(ctx context.Context, orderID, resultCode, message string) *ReturnOutcome {
	if orderID == "" {
		return &ReturnOutcome{ErrorCode: "invalid_params", Message: "Thiếu thông tin giao dịch"}
	}

	p, err := s.repo.GetByCode(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ReturnOutcome{ErrorCode: "payment_not_found", PaymentCode: orderID}
		}
		logger.ErrorString("Payment", "MomoReturn", err.Error())
		return &ReturnOutcome{ErrorCode: "system_error", Message: err.Error()}
	}

	if resultCode == "0" {
		latest := s.waitForCompletion(ctx, p)
		return &ReturnOutcome{
			OK:          true,
			BookingID:   latest.BookingID,
			PaymentCode: latest.PaymentCode,
			Amount:      latest.Amount,
			Status:      latest.Status,
		}
	}

	msg := MomoMessage(resultCode)
	if msg == "" {
		msg = message
	}
	if msg == "" {
		msg = GenericFailureMessage
	}
	return &ReturnOutcome{
		BookingID:    p.BookingID,
		ErrorCode:    "payment_failed",
		ResponseCode: resultCode,
		Message:      msg,
	}
}

// HandleZaloPayReturn 处理 ZaloPay 回跳
// 回跳只带 apptransid，按下单时存的关联标识匹配；匹配不到就是 not found，
// 不做"最近一条未完成记录"之类的猜测
func (s *Service) HandleZaloPayReturn(ctx context.Context, appTransID, status string) *ReturnOutcome {
	if appTransID == "" {
		return &ReturnOutcome{ErrorCode: "invalid_params", Message: "Thiếu thông tin giao dịch"}
	}

	p, err := s.repo.GetByCorrelationID(ctx, appTransID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnString("Payment", "ZaloPayReturn", "支付记录不存在 transId:"+appTransID)
			return &ReturnOutcome{ErrorCode: "payment_not_found", PaymentCode: appTransID}
		}
		logger.ErrorString("Payment", "ZaloPayReturn", err.Error())
		return &ReturnOutcome{ErrorCode: "system_error", Message: err.Error()}
	}

	if status == "1" {
		latest := s.waitForCompletion(ctx, p)
		return &ReturnOutcome{
			OK:          true,
			BookingID:   latest.BookingID,
			PaymentCode: latest.PaymentCode,
			Amount:      latest.Amount,
			Status:      latest.Status,
		}
	}

	return &ReturnOutcome{
		BookingID:    p.BookingID,
		ErrorCode:    "payment_failed",
		ResponseCode: status,
		Message:      ZaloPayMessage(status),
	}
}

// waitForCompletion 有界轮询等待并发的 IPN 把记录翻成 completed
// 固定间隔、固定次数，超时就带着当前状态返回，永远不自己改状态
func (s *Service) waitForCompletion(ctx context.Context, p *payment.Payment) *payment.Payment {
	if p.IsCompleted() {
		return p
	}

	latest := p
	for i := 0; i < waitAttempts; i++ {
		select {
		case <-ctx.Done():
			return latest
		case <-time.After(waitInterval):
		}

		// 先看完成信号，省一次数据库往返
		if s.signals != nil && !s.signals.Has(signalKey(p.PaymentCode)) {
			continue
		}

		fresh, err := s.repo.GetByCode(ctx, p.PaymentCode)
		if err != nil {
			continue
		}
		latest = fresh
		if fresh.IsCompleted() {
			return fresh
		}
	}
	return latest
}

// StartExpirySweeper 启动过期清理任务
// pending 记录过期 24 小时后软删除，返回的函数用于停止任务
func (s *Service) StartExpirySweeper(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				count, err := s.repo.SweepExpired(context.Background(), expiredRetention)
				if err != nil {
					logger.ErrorString("Payment", "Sweeper", "过期清理失败："+err.Error())
					continue
				}
				if count > 0 {
					logger.InfoString("Payment", "Sweeper",
						fmt.Sprintf("清理过期支付记录 %d 条", count))
				}
			}
		}
	}()

	return func() { close(done) }
}

// notifyBooking 通知订票服务支付完成
// 失败只记日志：支付状态是事实，订票侧的补偿交给外部对账
func (s *Service) notifyBooking(ctx context.Context, p *payment.Payment) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.PaymentCompleted(ctx, p.BookingID, &booking.PaymentInfo{
		PaymentID:     p.ID,
		PaymentCode:   p.PaymentCode,
		Amount:        p.Amount,
		Provider:      p.Method,
		TransactionID: p.TransactionID,
		PaidAt:        p.PaidAt,
	})
	logger.LogWarnIf(err)
}

// markSignal 写入支付完成信号
func (s *Service) markSignal(code string) {
	if s.signals == nil {
		return
	}
	s.signals.Set(signalKey(code), 1, signalTTL)
}

func signalKey(code string) string {
	return "paid:" + code
}
