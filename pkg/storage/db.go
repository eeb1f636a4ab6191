// Package storage 提供数据存储功能
package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KodaTao/PromptChain/pkg/observability"
)

// MemoryPath 内存数据库
const MemoryPath = ":memory:"

// Config 数据库配置
type Config struct {
	Path string // 数据库文件路径
}

// Open 打开数据库连接
func Open(cfg Config) (*gorm.DB, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}

	dbPath := cfg.Path
	if dbPath != MemoryPath {
		// 处理路径中的 ~
		dbPath = expandPath(dbPath)

		// 确保目录存在
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// 内存数据库每个连接相互独立，只保留一个连接
	if dbPath == MemoryPath {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	observability.Info("Database initialized", "path", dbPath)
	return db, nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// expandPath 展开路径中的 ~ 为用户主目录
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// 错误定义
var (
	ErrEmptyPath = &DBError{Message: "database path is required"}
)

// DBError 数据库错误
type DBError struct {
	Message string
}

func (e *DBError) Error() string {
	return e.Message
}
