package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "mailpool/backend/internal/auth/jwt"
	"mailpool/backend/internal/config"
	"mailpool/backend/internal/ledger"
	"mailpool/backend/internal/logger"
	"mailpool/backend/internal/monitoring"
	"mailpool/backend/internal/service"
	"mailpool/backend/internal/storage"
	"mailpool/backend/internal/storage/hybrid"
	"mailpool/backend/internal/storage/memory"
	sqlstore "mailpool/backend/internal/storage/sql"
	httptransport "mailpool/backend/internal/transport/http"
	"mailpool/backend/internal/verify"
)

// main 启动邮箱池服务：HTTP API、账本同步扫描与过期清理任务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mailpool server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("verify_mode", cfg.Verify.Mode),
	)

	// 初始化存储层
	store, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer store.Close()

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 校验码推导器
	deriver := verify.NewDeriver(cfg.Verify.Secret, verify.Mode(cfg.Verify.Mode))

	// 账本同步器（未配置账本服务时关闭）
	var synchronizer *ledger.Synchronizer
	if cfg.Ledger.BaseURL != "" {
		client := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.PricingUnitID,
			&http.Client{Timeout: cfg.Ledger.Timeout})
		synchronizer = ledger.NewSynchronizer(client, store, log)
		log.Info("ledger synchronizer initialized",
			zap.String("base_url", cfg.Ledger.BaseURL),
			zap.Duration("sweep_interval", cfg.Ledger.SweepInterval),
		)
	} else {
		log.Warn("ledger base_url not configured, balance sync disabled")
	}

	// 初始化服务层
	verificationService := service.NewVerificationService(store, deriver, cfg.Mailbox.MessageLimit, log)
	poolService := service.NewPoolService(store, deriver, synchronizer, cfg.Pool.ClaimStrict, cfg.Pool.ClaimTTL, log)
	tokenService := service.NewTokenService(store, log)

	// 管理端 JWT（未配置密钥时管理路由关闭）
	var jwtManager *jwtpkg.Manager
	if cfg.Admin.JWTSecret != "" {
		jwtManager = jwtpkg.NewManager(cfg.Admin.JWTSecret, cfg.Admin.JWTIssuer, 24*time.Hour)
	} else {
		log.Warn("admin jwt secret not configured, admin routes disabled")
	}

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:              cfg,
		VerificationService: verificationService,
		PoolService:         poolService,
		TokenService:        tokenService,
		JWTManager:          jwtManager,
		Metrics:             metrics,
		Store:               store,
		Logger:              log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 账本批量同步 goroutine
	if synchronizer != nil {
		group.Go(func() error {
			ticker := time.NewTicker(cfg.Ledger.SweepInterval)
			defer ticker.Stop()

			log.Info("starting ledger sweep task", zap.Duration("interval", cfg.Ledger.SweepInterval))

			for {
				select {
				case <-groupCtx.Done():
					log.Info("ledger sweep task stopped")
					return nil
				case <-ticker.C:
					start := time.Now()
					synced, failed := synchronizer.SweepAll(groupCtx)
					outcome := "success"
					if failed > 0 {
						outcome = "partial"
					}
					if synced == 0 && failed == 0 {
						outcome = "idle"
					}
					metrics.ObserveLedgerSync(outcome, time.Since(start))

					if available, err := store.ListAvailablePoolRecords(0); err == nil {
						metrics.PoolRecordsAvailable.Set(float64(len(available)))
					}
				}
			}
		})
	}

	// 定时清理过期邮箱 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		log.Info("starting expired mailbox cleanup task", zap.Duration("interval", 1*time.Hour))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				count, err := store.DeleteExpiredMailboxes(time.Now().UTC())
				if err != nil {
					log.Error("failed to cleanup expired mailboxes", zap.Error(err))
				} else if count > 0 {
					log.Info("expired mailboxes cleaned up", zap.Int("count", count))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}
	log.Info("mailpool server stopped")
}

// initializeStorage 根据配置选择存储实现
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	if cfg.Redis.Enabled {
		log.Info("using hybrid storage",
			zap.String("type", cfg.Database.Type),
			zap.String("redis", cfg.Redis.Address),
		)
		return hybrid.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
	}

	log.Info("using database storage", zap.String("type", cfg.Database.Type))
	return sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
}
