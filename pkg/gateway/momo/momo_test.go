package momo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinepay/pkg/gateway/types"
)

func testCodec() *Codec {
	return NewCodec(types.MomoConfig{
		PartnerCode: "MOMO_TEST",
		AccessKey:   "access-key",
		SecretKey:   "secret-key",
		Endpoint:    "https://test-payment.momo.vn/v2/gateway/api/create",
		RedirectURL: "https://example.com/payments/momo/return",
		IPNURL:      "https://example.com/payments/momo/callback",
	})
}

// signedNotification 按 IPN 方向的字段顺序算好签名的回调报文
func signedNotification(c *Codec, resultCode string) *Notification {
	n := &Notification{
		PartnerCode:  "MOMO_TEST",
		OrderID:      "PAY123ABC",
		RequestID:    "PAY123ABC_1700000000000",
		Amount:       json.Number("150000"),
		OrderInfo:    "Thanh toan dat ve BK001",
		OrderType:    "momo_wallet",
		TransID:      json.Number("2720512345"),
		ResultCode:   json.Number(resultCode),
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: json.Number("1700000012345"),
		ExtraData:    "",
	}

	raw := "accessKey=" + c.config.AccessKey +
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
	n.Signature = signSHA256(raw, c.config.SecretKey)
	return n
}

func TestVerifyNotificationValid(t *testing.T) {
	c := testCodec()
	n := signedNotification(c, "0")

	v := c.VerifyNotification(n)
	require.True(t, v.Valid)
	assert.True(t, v.Success)
	assert.Equal(t, "PAY123ABC", v.OrderID)
	assert.Equal(t, "2720512345", v.TransactionID)
	assert.Equal(t, "PAY123ABC_1700000000000", v.CorrelationID)
	assert.Equal(t, int64(150000), v.Amount)
	assert.Equal(t, "0", v.ResponseCode)
}

func TestVerifyNotificationFailedResult(t *testing.T) {
	c := testCodec()
	n := signedNotification(c, "1006")

	// 签名合法但交易失败，Valid 和 Success 相互独立
	v := c.VerifyNotification(n)
	require.True(t, v.Valid)
	assert.False(t, v.Success)
	assert.Equal(t, "1006", v.ResponseCode)
}

func TestVerifyNotificationTampered(t *testing.T) {
	c := testCodec()
	n := signedNotification(c, "0")

	// 签名之后篡改金额
	n.Amount = json.Number("1")

	v := c.VerifyNotification(n)
	assert.False(t, v.Valid)
}

func TestVerifyNotificationWrongKey(t *testing.T) {
	c := testCodec()
	n := signedNotification(c, "0")

	other := NewCodec(types.MomoConfig{
		PartnerCode: "MOMO_TEST",
		AccessKey:   "access-key",
		SecretKey:   "another-secret",
	})

	v := other.VerifyNotification(n)
	assert.False(t, v.Valid)
}

func TestVerifyNotificationEmptySignature(t *testing.T) {
	c := testCodec()
	n := signedNotification(c, "0")
	n.Signature = ""

	v := c.VerifyNotification(n)
	assert.False(t, v.Valid)
}
