// Package gatewayutil 支付单号、交易号生成
package gatewayutil

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GeneratePaymentCode 生成支付单号
// 格式：PAY + 毫秒时间戳的 36 进制 + 6 位随机字符
// 碰撞概率极低但不为零，唯一性由数据库的唯一索引兜底
func GeneratePaymentCode() string {
	return "PAY" + timestamp36() + randomBase36(6)
}

// GenerateTransactionID 生成内部交易号
func GenerateTransactionID() string {
	return "TXN" + strconv.FormatInt(time.Now().UnixMilli(), 10) + randomBase36(7)
}

// timestamp36 毫秒时间戳转大写 36 进制
func timestamp36() string {
	return strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
}

// randomBase36 生成 n 位随机 36 进制字符
func randomBase36(n int) string {
	var sb strings.Builder
	max := big.NewInt(int64(len(base36Chars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand 理论上不会失败，兜底用时间戳字符
			sb.WriteByte(base36Chars[time.Now().UnixNano()%36])
			continue
		}
		sb.WriteByte(base36Chars[idx.Int64()])
	}
	return sb.String()
}
