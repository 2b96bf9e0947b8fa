// Package momo MoMo 钱包网关
//
// 下单和 IPN 验签都是对固定字段顺序的 key=value 串做 HMAC-SHA256，
// 两个方向的字段清单不同（IPN 多了 transId 等网关字段、去掉了回调地址），
// 顺序错一个字段签名就对不上，不要重排
package momo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"cinepay/pkg/gateway/types"
	"cinepay/pkg/logger"
)

// requestType MoMo 钱包支付固定使用 captureWallet
const requestType = "captureWallet"

// Codec MoMo 网关编解码器
type Codec struct {
	config types.MomoConfig
	client *resty.Client
}

// NewCodec 创建 MoMo 编解码器
func NewCodec(config types.MomoConfig) *Codec {
	return &Codec{
		config: config,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// createResponse MoMo 下单应答
type createResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	QRCodeURL  string `json:"qrCodeUrl"`
	Deeplink   string `json:"deeplink"`
}

// CreatePayment 创建 MoMo 支付订单
// requestId 作为关联标识返回，回跳时靠它匹配支付记录
func (c *Codec) CreatePayment(ctx context.Context, req *types.CreateRequest) *types.CreateResult {
	requestID := fmt.Sprintf("%s_%d", req.OrderID, time.Now().UnixMilli())
	amount := strconv.FormatInt(req.Amount, 10)

	// 签名串的字段顺序是 MoMo 文档声明的固定顺序，不是字典序
	rawSignature := "accessKey=" + c.config.AccessKey +
		"&amount=" + amount +
		"&extraData=" + req.ExtraData +
		"&ipnUrl=" + c.config.IPNURL +
		"&orderId=" + req.OrderID +
		"&orderInfo=" + req.OrderInfo +
		"&partnerCode=" + c.config.PartnerCode +
		"&redirectUrl=" + c.config.RedirectURL +
		"&requestId=" + requestID +
		"&requestType=" + requestType

	signature := signSHA256(rawSignature, c.config.SecretKey)

	requestBody := map[string]interface{}{
		"partnerCode": c.config.PartnerCode,
		"accessKey":   c.config.AccessKey,
		"requestId":   requestID,
		"amount":      req.Amount,
		"orderId":     req.OrderID,
		"orderInfo":   req.OrderInfo,
		"redirectUrl": c.config.RedirectURL,
		"ipnUrl":      c.config.IPNURL,
		"extraData":   req.ExtraData,
		"requestType": requestType,
		"signature":   signature,
		"lang":        "vi",
	}

	var parsed createResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(requestBody).
		SetResult(&parsed).
		Post(c.config.Endpoint)
	if err != nil {
		logger.ErrorString("MoMo", "CreatePayment", "下单请求失败："+err.Error())
		return &types.CreateResult{Success: false, Err: err.Error()}
	}

	// 原始应答留作审计
	raw := map[string]interface{}{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		logger.WarnString("MoMo", "CreatePayment", "应答解析失败："+err.Error())
	}

	if parsed.ResultCode != 0 {
		logger.ErrorString("MoMo", "CreatePayment",
			fmt.Sprintf("下单被拒绝 resultCode:%d message:%s", parsed.ResultCode, parsed.Message))
		return &types.CreateResult{
			Success:       false,
			CorrelationID: requestID,
			RawResponse:   raw,
			Err:           parsed.Message,
		}
	}

	return &types.CreateResult{
		Success:       true,
		PayURL:        parsed.PayURL,
		CorrelationID: requestID,
		RawResponse:   raw,
	}
}

// Notification MoMo IPN 回调报文
// 数值字段用 json.Number 保留网关的原始字面量，拼签名串时不能出现精度偏差
type Notification struct {
	PartnerCode  string      `json:"partnerCode"`
	OrderID      string      `json:"orderId"`
	RequestID    string      `json:"requestId"`
	Amount       json.Number `json:"amount"`
	OrderInfo    string      `json:"orderInfo"`
	OrderType    string      `json:"orderType"`
	TransID      json.Number `json:"transId"`
	ResultCode   json.Number `json:"resultCode"`
	Message      string      `json:"message"`
	PayType      string      `json:"payType"`
	ResponseTime json.Number `json:"responseTime"`
	ExtraData    string      `json:"extraData"`
	Signature    string      `json:"signature"`
}

// VerifyNotification 校验 IPN 回调签名并提取结果
// 用收到的字段按 IPN 方向的固定顺序重算签名，常数时间比较
func (c *Codec) VerifyNotification(n *Notification) *types.Verification {
	rawSignature := "accessKey=" + c.config.AccessKey +
		"&amount=" + n.Amount.String() +
		"&extraData=" + n.ExtraData +
		"&message=" + n.Message +
		"&orderId=" + n.OrderID +
		"&orderInfo=" + n.OrderInfo +
		"&orderType=" + n.OrderType +
		"&partnerCode=" + n.PartnerCode +
		"&payType=" + n.PayType +
		"&requestId=" + n.RequestID +
		"&responseTime=" + n.ResponseTime.String() +
		"&resultCode=" + n.ResultCode.String() +
		"&transId=" + n.TransID.String()

	expected := signSHA256(rawSignature, c.config.SecretKey)

	if !hmac.Equal([]byte(expected), []byte(n.Signature)) {
		return &types.Verification{Valid: false}
	}

	amount, _ := n.Amount.Int64()

	return &types.Verification{
		Valid:         true,
		Success:       n.ResultCode.String() == "0",
		TransactionID: n.TransID.String(),
		OrderID:       n.OrderID,
		CorrelationID: n.RequestID,
		Amount:        amount,
		ResponseCode:  n.ResultCode.String(),
		Message:       n.Message,
	}
}

// signSHA256 HMAC-SHA256 十六进制摘要
func signSHA256(data, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
