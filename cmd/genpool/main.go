package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"mailpool/backend/internal/config"
	"mailpool/backend/internal/logger"
	"mailpool/backend/internal/service"
	"mailpool/backend/internal/storage"
	"mailpool/backend/internal/storage/memory"
	sqlstore "mailpool/backend/internal/storage/sql"
	"mailpool/backend/internal/verify"
)

// main 批量生成测试邮箱池记录。
// 每条记录的校验码在生成时预计算，入库前再推导一次核对。
func main() {
	count := flag.Int("count", 10, "生成的记录数量")
	mailDomain := flag.String("domain", "", "邮箱域名，留空使用配置的首个允许域名")
	prefix := flag.String("prefix", "pool", "邮箱前缀标识")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDevelopment()
	defer log.Sync()

	targetDomain := *mailDomain
	if targetDomain == "" {
		targetDomain = cfg.Mailbox.AllowedDomains[0]
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Printf("错误: 初始化存储失败: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	deriver := verify.NewDeriver(cfg.Verify.Secret, verify.Mode(cfg.Verify.Mode))
	pool := service.NewPoolService(store, deriver, nil, false, 0, log)

	created := 0
	for i := 0; i < *count; i++ {
		local := fmt.Sprintf("%s.%s", *prefix, randomSuffix())
		email := local + "@" + targetDomain

		record, err := pool.CreateRecord(email, cfg.Mailbox.DefaultTTL)
		if err != nil {
			log.Warn("生成记录失败",
				zap.String("email", email),
				zap.Error(err))
			continue
		}

		// 入库后核对一次推导结果，密钥或模式配置错误时立即中止
		if record.VerificationCode != deriver.Derive(local) {
			fmt.Printf("错误: %s 的校验码核对失败，中止生成\n", email)
			os.Exit(1)
		}

		created++
		fmt.Printf("  %s  %s\n", record.Email, record.VerificationCode)
	}

	fmt.Printf("✓ 已生成 %d/%d 条测试邮箱记录（域名 %s）\n", created, *count, targetDomain)
	verifyPoolState(store, log)
}

// randomSuffix 生成 8 位十六进制后缀
func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// verifyPoolState 打印当前可用记录数
func verifyPoolState(store storage.Store, log *zap.Logger) {
	available, err := store.ListAvailablePoolRecords(0)
	if err != nil {
		log.Warn("统计可用记录失败", zap.Error(err))
		return
	}
	fmt.Printf("  当前池中可用记录: %d\n", len(available))
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		fmt.Println("警告: 未配置数据库，记录写入内存存储，进程退出后丢失")
		return memory.NewStore(), nil
	}
	return sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
}
