package config

import (
	"fmt"
	"strings"

	"github.com/quickbite/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	UserJWT  JWTConfig      `mapstructure:"user_jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Order    OrderConfig    `mapstructure:"order"`
	Voucher  VoucherConfig  `mapstructure:"voucher"`
	Cart     CartConfig     `mapstructure:"cart"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release

	ReadHeaderTimeoutSeconds int `mapstructure:"read_header_timeout_seconds"`
	IdleTimeoutSeconds       int `mapstructure:"idle_timeout_seconds"`
	ShutdownTimeoutSeconds   int `mapstructure:"shutdown_timeout_seconds"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Service:    "quickbite-checkout",
		Level:      c.Level,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Stdout:     c.Stdout,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置（令牌由认证服务签发，此处只做校验）
type JWTConfig struct {
	SecretKey string `mapstructure:"secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CheckoutRateLimit RateLimitConfig `mapstructure:"checkout_rate_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// OrderConfig 订单配置
type OrderConfig struct {
	DecrementStockOnOrder bool   `mapstructure:"decrement_stock_on_order"` // 下单时原子扣减库存
	Currency              string `mapstructure:"currency"`
}

// VoucherConfig 优惠券配置
type VoucherConfig struct {
	StackingPolicy string `mapstructure:"stacking_policy"` // all / stackable_only
}

// CartConfig 购物车配置
type CartConfig struct {
	ExpireAfterMinutes int    `mapstructure:"expire_after_minutes"`
	SweepCron          string `mapstructure:"sweep_cron"`
}

// PaymentConfig 支付配置
type PaymentConfig struct {
	VNPay VNPayConfig `mapstructure:"vnpay"`
}

// VNPayConfig VNPay 网关配置
type VNPayConfig struct {
	TmnCode         string `mapstructure:"tmn_code"`
	HashSecret      string `mapstructure:"hash_secret"`
	PayURL          string `mapstructure:"pay_url"`
	APIURL          string `mapstructure:"api_url"`
	ReturnURL       string `mapstructure:"return_url"`
	ExpireMinutes   int    `mapstructure:"expire_minutes"`
	Locale          string `mapstructure:"locale"`
	SuccessRedirect string `mapstructure:"success_redirect"` // 支持 {order_id}
	FailureRedirect string `mapstructure:"failure_redirect"` // 支持 {store_id} 与 {status}
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// RealtimeConfig 实时推送配置
type RealtimeConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ChannelPrefix  string `mapstructure:"channel_prefix"`
	SendBufferSize int    `mapstructure:"send_buffer_size"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	setDefaults(viper.GetViper())

	// 环境变量支持（server.port -> SERVER_PORT）
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	cfg.normalize()
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_header_timeout_seconds", 10)
	v.SetDefault("server.idle_timeout_seconds", 120)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("log.level", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "checkout.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.stdout", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/quickbite.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("user_jwt.secret", "user-change-me-in-production")
	v.SetDefault("user_jwt.issuer", "")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "qb")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.checkout_rate_limit.window_seconds", 60)
	v.SetDefault("security.checkout_rate_limit.max_requests", 10)
	v.SetDefault("order.decrement_stock_on_order", true)
	v.SetDefault("order.currency", "VND")
	v.SetDefault("voucher.stacking_policy", "stackable_only")
	v.SetDefault("cart.expire_after_minutes", 1440)
	v.SetDefault("cart.sweep_cron", "@every 5m")
	v.SetDefault("payment.vnpay.pay_url", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	v.SetDefault("payment.vnpay.api_url", "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction")
	v.SetDefault("payment.vnpay.return_url", "http://localhost:8080/api/v1/payments/vnpay/return")
	v.SetDefault("payment.vnpay.expire_minutes", 15)
	v.SetDefault("payment.vnpay.locale", "vn")
	v.SetDefault("payment.vnpay.success_redirect", "http://localhost:3001/orders/detail-order/{order_id}?status=success")
	v.SetDefault("payment.vnpay.failure_redirect", "http://localhost:3001/store/{store_id}/cart?status={status}")
	v.SetDefault("payment.vnpay.timeout_seconds", 10)
	v.SetDefault("realtime.enabled", true)
	v.SetDefault("realtime.channel_prefix", "qb:events")
	v.SetDefault("realtime.send_buffer_size", 64)
}

func (c *Config) normalize() {
	c.Voucher.StackingPolicy = strings.ToLower(strings.TrimSpace(c.Voucher.StackingPolicy))
	if c.Order.Currency == "" {
		c.Order.Currency = "VND"
	}
	if c.Payment.VNPay.ExpireMinutes <= 0 {
		c.Payment.VNPay.ExpireMinutes = 15
	}
}
