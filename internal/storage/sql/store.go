package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/storage"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "mysql" or "postgres"
}

// NewStore 创建SQL数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var gormDB *gorm.DB
	if driverName == "mysql" {
		gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: db}), gormConfig)
	} else {
		gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(
		&domain.Mailbox{},
		&domain.Message{},
		&domain.TestMailboxRecord{},
		&domain.APIToken{},
		&domain.TokenUsage{},
	)
}

// ========== MailboxRepository ==========

// SaveMailbox 保存邮箱信息。
func (s *Store) SaveMailbox(mailbox *domain.Mailbox) error {
	mailbox.Email = strings.ToLower(mailbox.Email)
	return s.gormDB.Save(mailbox).Error
}

// GetMailboxByEmail 根据邮箱地址获取邮箱。
func (s *Store) GetMailboxByEmail(email string) (*domain.Mailbox, error) {
	var mailbox domain.Mailbox
	err := s.gormDB.Where("email = ?", strings.ToLower(email)).First(&mailbox).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrMailboxNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mailbox, nil
}

// SetMailboxActive 更新邮箱激活标记。
func (s *Store) SetMailboxActive(id string, active bool) error {
	result := s.gormDB.Model(&domain.Mailbox{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMailboxNotFound
	}
	return nil
}

// DeleteExpiredMailboxes 删除过期邮箱及其邮件，返回删除数量。
func (s *Store) DeleteExpiredMailboxes(before time.Time) (int, error) {
	var ids []string
	if err := s.gormDB.Model(&domain.Mailbox{}).
		Where("expires_at IS NOT NULL AND expires_at < ?", before).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mailbox_id IN ?", ids).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&domain.Mailbox{}).Error
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ========== MessageRepository ==========

// SaveMessage 保存邮件。
func (s *Store) SaveMessage(message *domain.Message) error {
	var count int64
	if err := s.gormDB.Model(&domain.Mailbox{}).
		Where("id = ?", message.MailboxID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return storage.ErrMailboxNotFound
	}
	return s.gormDB.Save(message).Error
}

// ListMessages 按接收时间倒序返回邮件。
func (s *Store) ListMessages(mailboxID string, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	query := s.gormDB.Where("mailbox_id = ?", mailboxID).Order("received_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// CountMessages 返回邮箱内邮件总数。
func (s *Store) CountMessages(mailboxID string) (int64, error) {
	var count int64
	err := s.gormDB.Model(&domain.Message{}).
		Where("mailbox_id = ?", mailboxID).Count(&count).Error
	return count, err
}

// MarkMessageRead 标记邮件为已读。
func (s *Store) MarkMessageRead(mailboxID, messageID string) error {
	result := s.gormDB.Model(&domain.Message{}).
		Where("id = ? AND mailbox_id = ?", messageID, mailboxID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}
