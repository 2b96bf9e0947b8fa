/*
	Package redis 提供 Redis 连接和操作的工具包

	1. 连接池管理
	2. 自动重连
	3. 并发安全
*/
package redis

import (
	"context"
	"sync"
	"time"

	"cinepay/pkg/logger"

	redis "github.com/redis/go-redis/v9"
)

// 关键配置常量
const (
	// DefaultPoolSize Redis 连接池大小
	DefaultPoolSize = 100
	// DefaultTimeout 默认操作超时时间
	DefaultTimeout = 5 * time.Second
	// DefaultMinIdleConns 最小空闲连接数
	DefaultMinIdleConns = 10
	// DefaultMaxRetries 最大重试次数
	DefaultMaxRetries = 3
	// DefaultIdleTimeout 空闲超时
	DefaultIdleTimeout = 5 * time.Minute
)

// RedisClient Redis 客户端封装
type RedisClient struct {
	Client  *redis.Client
	Context context.Context
}

// RedisConfig Redis 配置结构
type RedisConfig struct {
	Address      string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	Timeout      time.Duration
}

var (
	once sync.Once

	// Redis 全局的 Redis 对象
	Redis *RedisClient
)

// ConnectRedis 初始化 Redis 连接
func ConnectRedis(address, username, password string, db int) {
	once.Do(func() {
		config := RedisConfig{
			Address:      address,
			Username:     username,
			Password:     password,
			DB:           db,
			PoolSize:     DefaultPoolSize,
			MinIdleConns: DefaultMinIdleConns,
			Timeout:      DefaultTimeout,
		}
		Redis = NewClient(config)
	})
}

// NewClient 创建新的 Redis 客户端
func NewClient(config RedisConfig) *RedisClient {
	rds := &RedisClient{
		Context: context.Background(),
	}

	rds.Client = redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Username:     config.Username,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,     // 连接池大小
		MinIdleConns: config.MinIdleConns, // 最小空闲连接数

		// 连接池配置
		PoolTimeout:     config.Timeout,
		ConnMaxIdleTime: DefaultIdleTimeout,
		ConnMaxLifetime: 24 * time.Hour,

		// 读写超时
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		// 重试策略
		MaxRetries:      DefaultMaxRetries,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	// 测试连接
	if err := rds.Ping(); err != nil {
		logger.ErrorString("Redis", "连接", err.Error())
		panic(err)
	}

	return rds
}

// Ping 测试 redis 连接是否正常
func (rds *RedisClient) Ping() error {
	return rds.Client.Ping(rds.Context).Err()
}

// Set 存储 key 对应的 value，且设置 expiration 过期时间
func (rds *RedisClient) Set(key string, value interface{}, expiration time.Duration) bool {
	if err := rds.Client.Set(rds.Context, key, value, expiration).Err(); err != nil {
		logger.ErrorString("Redis", "Set", err.Error())
		return false
	}
	return true
}

// Get 获取 key 对应的 value
func (rds *RedisClient) Get(key string) string {
	result, err := rds.Client.Get(rds.Context, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.ErrorString("Redis", "Get", err.Error())
		}
		return ""
	}
	return result
}

// Has 判断一个 key 是否存在，内部错误和 redis.Nil 都返回 false
func (rds *RedisClient) Has(key string) bool {
	_, err := rds.Client.Get(rds.Context, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.ErrorString("Redis", "Has", err.Error())
		}
		return false
	}
	return true
}

// Del 删除存储在 redis 里的数据，支持多个 key 传参
func (rds *RedisClient) Del(keys ...string) bool {
	if err := rds.Client.Del(rds.Context, keys...).Err(); err != nil {
		logger.ErrorString("Redis", "Del", err.Error())
		return false
	}
	return true
}
