package factory

import (
	"fmt"

	"cinepay/pkg/gateway/momo"
	"cinepay/pkg/gateway/types"
	"cinepay/pkg/gateway/vnpay"
	"cinepay/pkg/gateway/zalopay"
)

// Codecs 三个在线网关的编解码器集合
// 验签方法的入参形态各不相同，调用方按网关取用具体类型
type Codecs struct {
	Momo    *momo.Codec
	ZaloPay *zalopay.Codec
	VNPay   *vnpay.Codec
}

// NewCodecs 根据配置构造所有网关编解码器
func NewCodecs(cfg types.GatewayConfig) *Codecs {
	return &Codecs{
		Momo:    momo.NewCodec(cfg.Momo),
		ZaloPay: zalopay.NewCodec(cfg.ZaloPay),
		VNPay:   vnpay.NewCodec(cfg.VNPay),
	}
}

// Creator 根据支付方式返回下单接口
// cash 没有网关交互，bank 暂未接入线上渠道
func (c *Codecs) Creator(provider types.Provider) (types.Creator, error) {
	switch provider {
	case types.ProviderMomo:
		return c.Momo, nil
	case types.ProviderZaloPay:
		return c.ZaloPay, nil
	case types.ProviderVNPay:
		return c.VNPay, nil
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", provider)
	}
}
