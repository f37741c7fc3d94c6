package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"card_shop/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound 统一包装 gorm.ErrRecordNotFound，调用方无需依赖 gorm。
var ErrNotFound = errors.New("repository: record not found")

// Open 按驱动名连接数据库（sqlite / postgres）。
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(SQLiteDSN(dsn))
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	return gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// sqliteDefaults 未显式配置时追加的连接参数。
// 写事务以 BEGIN IMMEDIATE 开始，先读后写的事务不会在升级写锁时互相死锁；
// 拿不到锁时等待而不是立即返回 database is locked。
var sqliteDefaults = []struct {
	keys  []string
	param string
}{
	{keys: []string{"_txlock"}, param: "_txlock=immediate"},
	{keys: []string{"_busy_timeout", "_timeout"}, param: "_busy_timeout=5000"},
	{keys: []string{"_journal_mode", "_journal"}, param: "_journal_mode=WAL"},
}

// SQLiteDSN 为 SQLite DSN 补齐缺省的锁与日志模式参数，已有的参数保持不变。
func SQLiteDSN(dsn string) string {
	_, query, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		return dsn
	}
	var extra []string
	for _, d := range sqliteDefaults {
		set := false
		for _, k := range d.keys {
			if params.Has(k) {
				set = true
			}
		}
		if !set {
			extra = append(extra, d.param)
		}
	}
	if len(extra) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(extra, "&")
}

// Migrate 自动建表。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}

// Store 持有连接池，是事务的唯一入口。
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Reader 返回事务外的只读仓储，用于下单前的校验与查询。
func (s *Store) Reader(ctx context.Context) *Repo {
	return &Repo{db: s.db.WithContext(ctx)}
}

// Transaction 在一个数据库事务内执行 fn；fn 返回错误时全部回滚。
func (s *Store) Transaction(ctx context.Context, fn func(r *Repo) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

// Repo 绑定到某个连接或事务句柄上的仓储。
type Repo struct {
	db *gorm.DB
}

// Nested 在当前事务内开启保存点；fn 返回错误时只回滚保存点之后的写入。
func (r *Repo) Nested(fn func(r *Repo) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
