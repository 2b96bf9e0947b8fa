package zalopay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinepay/pkg/gateway/types"
)

func testCodec() *Codec {
	return NewCodec(types.ZaloPayConfig{
		AppID:       "2553",
		Key1:        "create-key",
		Key2:        "callback-key",
		Endpoint:    "https://sb-openapi.zalopay.vn/v2/create",
		CallbackURL: "https://example.com/payments/zalopay/callback",
	})
}

// signedCallback 用 key2 对 data 原文算 MAC
func signedCallback(c *Codec, data string) *Callback {
	return &Callback{
		Data: data,
		MAC:  signSHA256(data, c.config.Key2),
	}
}

const testCallbackPayload = `{"app_trans_id":"1700000000000","app_user":"PAY456DEF","zp_trans_id":231000123456,"amount":90000}`

func TestVerifyNotificationValid(t *testing.T) {
	c := testCodec()
	cb := signedCallback(c, testCallbackPayload)

	v := c.VerifyNotification(cb)
	require.True(t, v.Valid)
	assert.True(t, v.Success)
	assert.Equal(t, "PAY456DEF", v.OrderID)
	assert.Equal(t, "1700000000000", v.CorrelationID)
	assert.Equal(t, "231000123456", v.TransactionID)
	assert.Equal(t, int64(90000), v.Amount)
}

func TestVerifyNotificationTamperedData(t *testing.T) {
	c := testCodec()
	cb := signedCallback(c, testCallbackPayload)

	// MAC 签发后篡改 data
	cb.Data = `{"app_trans_id":"1700000000000","app_user":"PAY456DEF","zp_trans_id":231000123456,"amount":1}`

	v := c.VerifyNotification(cb)
	assert.False(t, v.Valid)
}

func TestVerifyNotificationWrongKey(t *testing.T) {
	c := testCodec()
	cb := &Callback{
		Data: testCallbackPayload,
		MAC:  signSHA256(testCallbackPayload, "not-the-callback-key"),
	}

	v := c.VerifyNotification(cb)
	assert.False(t, v.Valid)
}

func TestVerifyNotificationMissingFields(t *testing.T) {
	c := testCodec()

	assert.False(t, c.VerifyNotification(&Callback{}).Valid)
	assert.False(t, c.VerifyNotification(&Callback{Data: testCallbackPayload}).Valid)
	assert.False(t, c.VerifyNotification(&Callback{MAC: "abc"}).Valid)
}

func TestVerifyNotificationMalformedData(t *testing.T) {
	c := testCodec()

	// MAC 对得上但 data 不是合法 JSON
	cb := signedCallback(c, "not-json")
	v := c.VerifyNotification(cb)
	assert.False(t, v.Valid)
}
