package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cinepay/app/models/payment"
	"cinepay/pkg/database"
)

// PaymentRepository 支付记录仓库
// 所有查询都过滤软删除的记录，完成/失败的状态变更使用条件更新保证原子性
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建仓库实例
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		db: database.DB,
	}
}

// NewPaymentRepositoryWithDB 使用指定的数据库连接创建仓库实例（测试用）
func NewPaymentRepositoryWithDB(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create 创建支付记录
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update 更新支付记录
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// GetByID 根据主键获取支付记录
func (r *PaymentRepository) GetByID(ctx context.Context, id uint64) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByCode 根据支付单号获取支付记录
func (r *PaymentRepository) GetByCode(ctx context.Context, code string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("payment_code = ? AND deleted = ?", code, false).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LatestByBookingID 获取 booking 最近一条支付记录
func (r *PaymentRepository) LatestByBookingID(ctx context.Context, bookingID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND deleted = ?", bookingID, false).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByTransactionID 根据网关交易号获取支付记录
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("transaction_id = ? AND deleted = ?", transactionID, false).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByCorrelationID 根据请求时产生的网关关联标识查找支付记录
// 下单时存入 metadata.trans_id，回调落库后也可以在 gateway_response.app_trans_id 里找到
func (r *PaymentRepository) GetByCorrelationID(ctx context.Context, transID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("metadata ->> 'trans_id' = ? AND deleted = ?", transID, false).
		First(&p).Error
	if err == nil {
		return &p, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	// 回退到回调报文里的关联字段
	err = r.db.WithContext(ctx).
		Where("gateway_response ->> 'app_trans_id' = ? AND deleted = ?", transID, false).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HasCompletedForBooking 判断 booking 是否已经存在支付成功的记录
func (r *PaymentRepository) HasCompletedForBooking(ctx context.Context, bookingID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("booking_id = ? AND status = ? AND deleted = ?",
			bookingID, string(payment.StatusCompleted), false).
		Count(&count).Error
	return count > 0, err
}

// MarkCompleted 将支付记录置为 completed
//
// 单条条件 UPDATE，只在记录尚未进入终态、且同一 booking 还没有其他
// 支付成功的记录时生效。网关会重发通知，浏览器回跳也可能和 IPN 并发，
// 谁先改成功谁赢，返回值表示本次调用是否赢得了这次状态变更。
func (r *PaymentRepository) MarkCompleted(ctx context.Context, p *payment.Payment, transactionID string, gatewayResponse payment.JSON) (bool, error) {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("id = ? AND deleted = ?", p.ID, false).
		Where("status NOT IN ?", []string{
			string(payment.StatusCompleted),
			string(payment.StatusRefunded),
			string(payment.StatusCancelled),
		}).
		Where("NOT EXISTS (SELECT 1 FROM payments other WHERE other.booking_id = ? AND other.status = ? AND other.deleted = ? AND other.id <> ?)",
			p.BookingID, string(payment.StatusCompleted), false, p.ID).
		Updates(map[string]interface{}{
			"status":           string(payment.StatusCompleted),
			"transaction_id":   transactionID,
			"gateway_response": gatewayResponse,
			"paid_at":          now,
			"expires_at":       nil,
		})
	if result.Error != nil {
		return false, result.Error
	}

	won := result.RowsAffected > 0
	if won {
		p.Status = string(payment.StatusCompleted)
		p.TransactionID = transactionID
		p.GatewayResponse = gatewayResponse
		p.PaidAt = &now
		p.ExpiresAt = nil
	}
	return won, nil
}

// MarkFailed 将支付记录置为 failed
// 已经 completed 的记录不会被降级，IPN 赢了竞态之后的失败回跳是 no-op
func (r *PaymentRepository) MarkFailed(ctx context.Context, p *payment.Payment, gatewayResponse payment.JSON) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("id = ? AND deleted = ?", p.ID, false).
		Where("status NOT IN ?", []string{
			string(payment.StatusCompleted),
			string(payment.StatusRefunded),
		}).
		Updates(map[string]interface{}{
			"status":           string(payment.StatusFailed),
			"gateway_response": gatewayResponse,
		})
	if result.Error != nil {
		return false, result.Error
	}

	if result.RowsAffected > 0 {
		p.Status = string(payment.StatusFailed)
		p.GatewayResponse = gatewayResponse
		return true, nil
	}
	return false, nil
}

// SweepExpired 软删除过期超过 graceDuration 的 pending 记录
// 对应过期废弃策略：不是支付失败，只是超时未支付的记录不再保留
func (r *PaymentRepository) SweepExpired(ctx context.Context, graceDuration time.Duration) (int64, error) {
	now := time.Now()
	cutoff := now.Add(-graceDuration)

	result := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("status = ? AND deleted = ? AND expires_at IS NOT NULL AND expires_at < ?",
			string(payment.StatusPending), false, cutoff).
		Updates(map[string]interface{}{
			"deleted":    true,
			"deleted_at": now,
		})
	return result.RowsAffected, result.Error
}
