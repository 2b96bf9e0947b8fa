// Package types 定义支付网关的公共类型
package types

import (
	"context"
)

// Provider 支付网关类型
type Provider string

const (
	ProviderCash    Provider = "cash"    // 现金，无网关交互
	ProviderMomo    Provider = "momo"    // MoMo 钱包
	ProviderZaloPay Provider = "zalopay" // ZaloPay
	ProviderVNPay   Provider = "vnpay"   // VNPay
	ProviderBank    Provider = "bank"    // 银行转账
)

// CreateRequest 下单请求参数
type CreateRequest struct {
	// OrderID 本服务的支付单号（paymentCode），传给网关做对账标识
	OrderID   string
	Amount    int64
	OrderInfo string
	// IPAddr 用户 IP，VNPay 签名字段之一
	IPAddr string
	// BankCode 指定银行直连（VNPay 可选）
	BankCode string
	// ExtraData 透传数据（MoMo 可选）
	ExtraData string
}

// CreateResult 下单结果
// 网关调用失败时 Success 为 false 并带上 Err，调用方仍然可以落库 pending 记录
type CreateResult struct {
	Success bool
	// PayURL 用户跳转支付的地址
	PayURL string
	// CorrelationID 请求时产生的网关侧标识（MoMo requestId / ZaloPay app_trans_id），
	// 回调和回跳不一定带回我们的支付单号，需要靠它来匹配
	CorrelationID string
	// RawResponse 网关的原始应答，留作审计
	RawResponse map[string]interface{}
	Err         string
}

// Verification 回调验签结果
// Valid 表示签名校验是否通过，Success 表示网关自身的交易结果，两者相互独立
type Verification struct {
	Valid   bool
	Success bool
	// TransactionID 网关分配的交易号
	TransactionID string
	// OrderID 回调中携带的我方支付单号（部分网关的回跳不带）
	OrderID string
	// CorrelationID 回调中携带的网关侧标识
	CorrelationID string
	Amount        int64
	ResponseCode  string
	Message       string
}

// Creator 下单接口，三个在线网关都实现
// 验签方法因回调报文形态不同（JSON 体 / data+mac / query 参数）各自暴露
type Creator interface {
	CreatePayment(ctx context.Context, req *CreateRequest) *CreateResult
}

// MomoConfig MoMo 网关配置
type MomoConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	// RedirectURL 用户支付完成后浏览器跳转地址
	RedirectURL string
	// IPNURL 服务端回调地址
	IPNURL string
}

// ZaloPayConfig ZaloPay 网关配置
type ZaloPayConfig struct {
	AppID string
	// Key1 签发下单请求，Key2 校验回调，两把不同的密钥
	Key1        string
	Key2        string
	Endpoint    string
	CallbackURL string
}

// VNPayConfig VNPay 网关配置
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	URL        string
	ReturnURL  string
	// Timezone 签名时间戳使用的时区，默认越南时区
	Timezone string
}

// GatewayConfig 所有网关的配置集合，启动时构造一次，显式传入各 codec
type GatewayConfig struct {
	Momo    MomoConfig
	ZaloPay ZaloPayConfig
	VNPay   VNPayConfig
}
