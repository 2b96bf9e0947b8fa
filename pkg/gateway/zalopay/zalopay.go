// Package zalopay ZaloPay 网关
//
// 下单用 key1 对竖线分隔的定位字段串做 HMAC-SHA256，
// 回调用 key2 对原始 data 字符串重算 MAC，校验通过之前绝不解析 data
package zalopay

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

// Codec ZaloPay 网关编解码器
type Codec struct {
	config types.ZaloPayConfig
	client *resty.Client
}

// NewCodec 创建 ZaloPay 编解码器
func NewCodec(config types.ZaloPayConfig) *Codec {
	return &Codec{
		config: config,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// createResponse ZaloPay 下单应答
type createResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
	OrderURL      string `json:"order_url"`
	ZpTransToken  string `json:"zp_trans_token"`
}

// CreatePayment 创建 ZaloPay 支付订单
// app_trans_id 在下单前生成并作为关联标识返回，
// 浏览器回跳只带 apptransid 不带我们的支付单号，必须靠它匹配
func (c *Codec) CreatePayment(ctx context.Context, req *types.CreateRequest) *types.CreateResult {
	now := time.Now().UnixMilli()
	transID := strconv.FormatInt(now, 10)

	embedData := "{}"
	items := "[]"
	amount := strconv.FormatInt(req.Amount, 10)
	appTime := strconv.FormatInt(now, 10)

	// 签名串是定位字段拼接：appid|transid|orderid|amount|apptime|embed_data|item
	data := c.config.AppID + "|" + transID + "|" + req.OrderID + "|" +
		amount + "|" + appTime + "|" + embedData + "|" + items
	mac := signSHA256(data, c.config.Key1)

	var parsed createResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"app_id":       c.config.AppID,
			"app_trans_id": transID,
			"app_user":     req.OrderID,
			"app_time":     appTime,
			"amount":       amount,
			"embed_data":   embedData,
			"item":         items,
			"description":  req.OrderInfo,
			"mac":          mac,
			"callback_url": c.config.CallbackURL,
		}).
		SetResult(&parsed).
		Post(c.config.Endpoint)
	if err != nil {
		logger.ErrorString("ZaloPay", "CreatePayment", "下单请求失败："+err.Error())
		return &types.CreateResult{Success: false, Err: err.Error()}
	}

	raw := map[string]interface{}{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		logger.WarnString("ZaloPay", "CreatePayment", "应答解析失败："+err.Error())
	}

	if parsed.ReturnCode != 1 {
		logger.ErrorString("ZaloPay", "CreatePayment",
			fmt.Sprintf("下单被拒绝 return_code:%d message:%s", parsed.ReturnCode, parsed.ReturnMessage))
		return &types.CreateResult{
			Success:       false,
			CorrelationID: transID,
			RawResponse:   raw,
			Err:           parsed.ReturnMessage,
		}
	}

	return &types.CreateResult{
		Success:       true,
		PayURL:        parsed.OrderURL,
		CorrelationID: transID,
		RawResponse:   raw,
	}
}

// Callback ZaloPay 服务端回调报文：已签名的 data 原文 + mac
type Callback struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
}

// callbackData data 字段里的结构化内容，只有 MAC 校验通过后才解析
type callbackData struct {
	AppTransID string      `json:"app_trans_id"`
	AppUser    string      `json:"app_user"`
	ZpTransID  json.Number `json:"zp_trans_id"`
	Amount     json.Number `json:"amount"`
}

// VerifyNotification 校验回调 MAC 并提取结果
// 先用 key2 对原始 data 字符串重算 MAC，常数时间比较，
// 校验不通过时不触碰 data 里的任何内容
func (c *Codec) VerifyNotification(cb *Callback) *types.Verification {
	if cb.Data == "" || cb.MAC == "" {
		return &types.Verification{Valid: false}
	}

	expected := signSHA256(cb.Data, c.config.Key2)
	if !hmac.Equal([]byte(expected), []byte(cb.MAC)) {
		return &types.Verification{Valid: false}
	}

	var data callbackData
	if err := json.Unmarshal([]byte(cb.Data), &data); err != nil {
		logger.ErrorString("ZaloPay", "VerifyNotification", "data 解析失败："+err.Error())
		return &types.Verification{Valid: false}
	}

	amount, _ := data.Amount.Int64()

	// ZaloPay 的回调只要送达即视为支付成功，失败的交易不会回调
	return &types.Verification{
		Valid:         true,
		Success:       true,
		TransactionID: data.ZpTransID.String(),
		// 下单时 app_user 填的是我们的支付单号
		OrderID:       data.AppUser,
		CorrelationID: data.AppTransID,
		Amount:        amount,
	}
}

// signSHA256 HMAC-SHA256 十六进制摘要
func signSHA256(data, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
