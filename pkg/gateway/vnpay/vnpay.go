// Package vnpay VNPay 网关
//
// 签名数据的规范化规则：除签名字段外的所有字段，键和值分别做 URL 编码、
// 编码后的空格替换成 +，按编码后的键名字典序排序，再拼成 query 串，
// 最后对整串做 HMAC-SHA512。金额对网关要乘 100，验签时要除回来
package vnpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"cinepay/pkg/gateway/types"
)

// 固定协议参数
const (
	version   = "2.1.0"
	command   = "pay"
	orderType = "other"
	locale    = "vn"
	currCode  = "VND"

	// SuccessCode 网关的成功响应码
	SuccessCode = "00"
)

// Codec VNPay 网关编解码器
// 下单不需要调用网关接口，签名后的 URL 直接交给浏览器跳转
type Codec struct {
	config types.VNPayConfig
	loc    *time.Location
}

// NewCodec 创建 VNPay 编解码器
func NewCodec(config types.VNPayConfig) *Codec {
	timezone := config.Timezone
	if timezone == "" {
		timezone = "Asia/Ho_Chi_Minh"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.FixedZone("ICT", 7*3600)
	}
	return &Codec{config: config, loc: loc}
}

// CreatePayment 构造签名后的支付跳转 URL
// VNPay 下单没有服务端接口调用，签名 URL 直接交给浏览器跳转
func (c *Codec) CreatePayment(_ context.Context, req *types.CreateRequest) *types.CreateResult {
	ipAddr := req.IPAddr
	if ipAddr == "" {
		ipAddr = "127.0.0.1"
	}
	createDate := time.Now().In(c.loc).Format("20060102150405")

	params := map[string]string{
		"vnp_Version":  version,
		"vnp_Command":  command,
		"vnp_TmnCode":  c.config.TmnCode,
		"vnp_Locale":   locale,
		"vnp_CurrCode": currCode,
		"vnp_TxnRef":   req.OrderID,
		"vnp_OrderInfo": req.OrderInfo,
		"vnp_OrderType": orderType,
		// 网关侧金额按最小单位 ×100 传输
		"vnp_Amount":     strconv.FormatInt(ScaleAmount(req.Amount), 10),
		"vnp_ReturnUrl":  c.config.ReturnURL,
		"vnp_IpAddr":     ipAddr,
		"vnp_CreateDate": createDate,
	}
	if req.BankCode != "" {
		params["vnp_BankCode"] = req.BankCode
	}

	signData := canonicalize(params)
	signed := signSHA512(signData, c.config.HashSecret)

	paymentURL := c.config.URL + "?" + signData + "&vnp_SecureHash=" + signed

	return &types.CreateResult{
		Success: true,
		PayURL:  paymentURL,
		RawResponse: map[string]interface{}{
			"url": paymentURL,
		},
	}
}

// VerifyNotification 校验回调/回跳参数的签名并提取结果
// 剔除签名字段后按同一套规范化规则重算，常数时间比较
func (c *Codec) VerifyNotification(query map[string]string) *types.Verification {
	secureHash := query["vnp_SecureHash"]
	if secureHash == "" {
		return &types.Verification{Valid: false}
	}

	params := make(map[string]string, len(query))
	for k, v := range query {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		params[k] = v
	}

	signData := canonicalize(params)
	expected := signSHA512(signData, c.config.HashSecret)

	if !hmac.Equal([]byte(expected), []byte(secureHash)) {
		return &types.Verification{Valid: false}
	}

	responseCode := query["vnp_ResponseCode"]

	var amount int64
	if raw, err := strconv.ParseInt(query["vnp_Amount"], 10, 64); err == nil {
		amount = UnscaleAmount(raw)
	}

	return &types.Verification{
		Valid:         true,
		Success:       responseCode == SuccessCode,
		TransactionID: query["vnp_TransactionNo"],
		OrderID:       query["vnp_TxnRef"],
		Amount:        amount,
		ResponseCode:  responseCode,
		Message:       query["vnp_OrderInfo"],
	}
}

// ScaleAmount 标准单位金额换算为网关侧 ×100 金额
func ScaleAmount(amount int64) int64 {
	return amount * 100
}

// UnscaleAmount 网关侧金额换算回标准单位
func UnscaleAmount(amount int64) int64 {
	return amount / 100
}

// canonicalize 按 VNPay 规则生成待签名串
func canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, encode(k))
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		// 键在本协议里都是 vnp_ 前缀的安全字符，编码前后一致
		pairs = append(pairs, k+"="+encode(params[k]))
	}
	return strings.Join(pairs, "&")
}

// encode URL 编码，QueryEscape 本身就把空格编码成 +，与网关要求一致
func encode(s string) string {
	return url.QueryEscape(s)
}

// signSHA512 HMAC-SHA512 十六进制摘要
func signSHA512(data, key string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
