package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailboxConfig 定义邮箱服务的核心业务配置
type MailboxConfig struct {
	AllowedDomains []string      // 允许创建邮箱的域名列表
	DefaultTTL     time.Duration // 邮箱默认生存时间，过期后由清理任务删除
	MessageLimit   int           // 验证接口单次返回的邮件上限，默认 50
}

// VerifyConfig 定义校验码推导配置
type VerifyConfig struct {
	Secret string // 进程级推导密钥，必须至少 16 字符
	Mode   string // 推导模式: "legacy"（滚动哈希）或 "hmac"（加固模式）
}

// PoolConfig 定义测试邮箱池配置
type PoolConfig struct {
	ClaimStrict bool          // 严格领取模式：listAvailable 改为原子领取
	ClaimTTL    time.Duration // 严格模式下领取记录的占用时长
}

// AutomationConfig 定义自动化网关配置
type AutomationConfig struct {
	SchedulerKey string // 调度器共享密钥，仅放行批量导出/扫描触发
}

// LedgerConfig 定义第三方用量账本服务配置
type LedgerConfig struct {
	BaseURL       string        // 账本服务根地址
	PricingUnitID string        // 查询余额使用的固定计价单元
	Timeout       time.Duration // 单次调用超时，默认 10s
	SweepInterval time.Duration // 批量同步间隔，默认 6h
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis 读缓存
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空仅输出到控制台
}

// AdminConfig 定义管理接口的 JWT 校验配置
type AdminConfig struct {
	JWTSecret string // 管理端 JWT 签名密钥；留空时管理路由关闭
	JWTIssuer string // JWT 签发者标识，默认 "mailpool"
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server     ServerConfig
	Mailbox    MailboxConfig
	Verify     VerifyConfig
	Pool       PoolConfig
	Automation AutomationConfig
	Ledger     LedgerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Admin      AdminConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILPOOL_
// 例如: MAILPOOL_SERVER_HOST, MAILPOOL_VERIFY_SECRET
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("mailpool")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mailbox.allowed_domains", "temp.mail")
	viper.SetDefault("mailbox.default_ttl", "24h")
	viper.SetDefault("mailbox.message_limit", 50)
	viper.SetDefault("verify.secret", "")
	viper.SetDefault("verify.mode", "legacy")
	viper.SetDefault("pool.claim_strict", false)
	viper.SetDefault("pool.claim_ttl", "10m")
	viper.SetDefault("automation.scheduler_key", "")
	viper.SetDefault("ledger.base_url", "")
	viper.SetDefault("ledger.pricing_unit_id", "")
	viper.SetDefault("ledger.timeout", "10s")
	viper.SetDefault("ledger.sweep_interval", "6h")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("admin.jwt_secret", "")
	viper.SetDefault("admin.jwt_issuer", "mailpool")

	defaultTTL, err := time.ParseDuration(viper.GetString("mailbox.default_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.default_ttl: %w", err)
	}

	domainList := parseDomains(viper.GetString("mailbox.allowed_domains"))
	if len(domainList) == 0 {
		return nil, fmt.Errorf("mailbox.allowed_domains must not be empty")
	}

	messageLimit := viper.GetInt("mailbox.message_limit")
	if messageLimit <= 0 {
		messageLimit = 50
	}

	verifySecret := viper.GetString("verify.secret")
	// 校验码密钥是整个访问验证机制的根，绝不允许空值或弱值上线
	if verifySecret == "" {
		return nil, fmt.Errorf("SECURITY ERROR: verify secret is required. Please set MAILPOOL_VERIFY_SECRET environment variable")
	}
	if len(verifySecret) < 16 {
		return nil, fmt.Errorf("SECURITY ERROR: verify secret must be at least 16 characters long")
	}

	verifyMode := viper.GetString("verify.mode")
	if verifyMode != "legacy" && verifyMode != "hmac" {
		return nil, fmt.Errorf("invalid verify.mode: %s (supported: legacy, hmac)", verifyMode)
	}

	claimTTL, err := time.ParseDuration(viper.GetString("pool.claim_ttl"))
	if err != nil {
		claimTTL = 10 * time.Minute
	}

	ledgerTimeout, err := time.ParseDuration(viper.GetString("ledger.timeout"))
	if err != nil {
		ledgerTimeout = 10 * time.Second
	}

	sweepInterval, err := time.ParseDuration(viper.GetString("ledger.sweep_interval"))
	if err != nil {
		sweepInterval = 6 * time.Hour
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mailbox: MailboxConfig{
			AllowedDomains: domainList,
			DefaultTTL:     defaultTTL,
			MessageLimit:   messageLimit,
		},
		Verify: VerifyConfig{
			Secret: verifySecret,
			Mode:   verifyMode,
		},
		Pool: PoolConfig{
			ClaimStrict: viper.GetBool("pool.claim_strict"),
			ClaimTTL:    claimTTL,
		},
		Automation: AutomationConfig{
			SchedulerKey: viper.GetString("automation.scheduler_key"),
		},
		Ledger: LedgerConfig{
			BaseURL:       strings.TrimRight(viper.GetString("ledger.base_url"), "/"),
			PricingUnitID: viper.GetString("ledger.pricing_unit_id"),
			Timeout:       ledgerTimeout,
			SweepInterval: sweepInterval,
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.file"),
		},
		Admin: AdminConfig{
			JWTSecret: viper.GetString("admin.jwt_secret"),
			JWTIssuer: viper.GetString("admin.jwt_issuer"),
		},
	}

	return cfg, nil
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（从 backend/ 子目录运行时）
//
// 文件不存在时静默失败（.env 是可选的），已存在的环境变量优先级更高。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
