package bootstrap

import (
	"fmt"

	"cinepay/pkg/config"
	"cinepay/pkg/redis"
)

// SetupRedis 初始化 Redis
// 支付完成信号和限流存储都走这个连接
func SetupRedis() {
	redis.ConnectRedis(
		fmt.Sprintf("%v:%v", config.GetString("redis.host"), config.GetString("redis.port")),
		config.GetString("redis.username"),
		config.GetString("redis.password"),
		config.GetInt("redis.database"),
	)
}
