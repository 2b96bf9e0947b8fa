package payment

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Status 支付状态
type Status string

const (
	StatusPending    Status = "pending"    // 待支付
	StatusProcessing Status = "processing" // 处理中
	StatusCompleted  Status = "completed"  // 支付成功
	StatusFailed     Status = "failed"     // 支付失败
	StatusCancelled  Status = "cancelled"  // 已取消
	StatusRefunded   Status = "refunded"   // 已退款
)

// Method 支付方式
type Method string

const (
	MethodCash    Method = "cash"    // 现金，创建时直接 completed
	MethodMomo    Method = "momo"    // MoMo 钱包
	MethodZaloPay Method = "zalopay" // ZaloPay
	MethodVNPay   Method = "vnpay"   // VNPay
	MethodBank    Method = "bank"    // 银行转账
)

// PendingTimeout 在线支付的有效期，过期后记录等待被清理
const PendingTimeout = 15 * time.Minute

// JSON 自定义JSON类型
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	return json.Unmarshal(bytes, j)
}

// Validate 验证支付记录
func (p *Payment) Validate() error {
	if p.BookingID == "" {
		return errors.New("booking_id is required")
	}
	if p.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if !p.ValidateMethod() {
		return errors.New("invalid payment method")
	}
	return nil
}

// ValidateMethod 验证支付方式
func (p *Payment) ValidateMethod() bool {
	switch Method(p.Method) {
	case MethodCash, MethodMomo, MethodZaloPay, MethodVNPay, MethodBank:
		return true
	}
	return false
}

// IsCompleted 检查支付是否成功
func (p *Payment) IsCompleted() bool {
	return p.Status == string(StatusCompleted)
}

// IsPending 检查是否待支付
func (p *Payment) IsPending() bool {
	return p.Status == string(StatusPending)
}

// IsTerminal 检查是否处于终态，终态的记录不再接受网关回调的状态变更
func (p *Payment) IsTerminal() bool {
	switch Status(p.Status) {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// IsExpired 检查 pending 记录是否已超过有效期
func (p *Payment) IsExpired() bool {
	if p.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*p.ExpiresAt)
}

// CanRefund 只有已支付且尚未退过款的记录可以退款
func (p *Payment) CanRefund() bool {
	return p.Status == string(StatusCompleted) && p.RefundAmount == 0
}
