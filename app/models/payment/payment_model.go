package payment

import (
	"time"
)

// Payment 支付记录模型
// 一条记录对应上游订票服务的一次支付请求，
// paymentCode 是本服务生成的对外唯一标识，transactionId 是网关侧的交易号
type Payment struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentCode string `gorm:"type:varchar(64);uniqueIndex" json:"payment_code"`

	// 上游订票服务的关联信息，不做外键约束（归属外部服务）
	BookingID   string `gorm:"type:varchar(64);index" json:"booking_id"`
	BookingCode string `gorm:"type:varchar(64)" json:"booking_code"`

	// 金额使用最小货币单位的整数（VND 无小数位）
	Amount int64  `gorm:"" json:"amount"`
	Method string `gorm:"type:varchar(20)" json:"method"`
	Status string `gorm:"type:varchar(20);index" json:"status"`

	// 客户联系方式快照
	CustomerName  string `gorm:"type:varchar(128)" json:"customer_name"`
	CustomerPhone string `gorm:"type:varchar(32)" json:"customer_phone"`
	CustomerEmail string `gorm:"type:varchar(128)" json:"customer_email"`

	// 网关侧交易信息
	TransactionID   string `gorm:"type:varchar(64);index" json:"transaction_id"`
	GatewayResponse JSON   `gorm:"type:json" json:"gateway_response"`

	// 请求时产生的关联标识（requestId、transId、paymentUrl 等）
	Metadata JSON `gorm:"type:json" json:"metadata"`

	// 时间字段：expiresAt 仅在 pending 状态有效，paidAt 仅在 completed 时设置
	ExpiresAt *time.Time `gorm:"index" json:"expires_at"`
	PaidAt    *time.Time `gorm:"" json:"paid_at"`

	// 退款子流程
	RefundAmount int64      `gorm:"default:0" json:"refund_amount"`
	RefundedAt   *time.Time `gorm:"" json:"refunded_at"`
	RefundReason string     `gorm:"type:varchar(255)" json:"refund_reason"`

	// 软删除标记，所有查询都要过滤
	Deleted   bool       `gorm:"default:false;index" json:"deleted"`
	DeletedAt *time.Time `gorm:"" json:"deleted_at"`

	CreatedAt time.Time `gorm:"" json:"created_at"`
	UpdatedAt time.Time `gorm:"" json:"updated_at"`
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
