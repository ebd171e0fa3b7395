package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iliyamo/tradeflow/internal/config"
	"github.com/iliyamo/tradeflow/internal/repository"
)

// Open connects to the configured store, verifies the connection and
// returns a repository.Store. MySQL and PostgreSQL transactions run at
// SERIALIZABLE; SQLite serialises writers on its own.
func Open(cfg config.Config) (*repository.Store, error) {
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	var (
		db   *gorm.DB
		err  error
		opts []repository.Option
	)
	switch cfg.DBDriver {
	case "mysql":
		sqlDB, oerr := openMySQL(cfg)
		if oerr != nil {
			return nil, oerr
		}
		db, err = gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), gcfg)
		opts = append(opts, repository.WithIsolation(sql.LevelSerializable))
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DBDSN), gcfg)
		opts = append(opts, repository.WithIsolation(sql.LevelSerializable))
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DBDSN), gcfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql handle: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		// Pool settings
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.DBDriver, err)
	}
	return repository.NewStore(db, opts...), nil
}

// openMySQL builds the DSN from the discrete DB_* settings.
// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
func openMySQL(cfg config.Config) (*sql.DB, error) {
	mc := mysqldriver.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPass
	mc.Net = "tcp"
	mc.Addr = cfg.DBHost + ":" + cfg.DBPort
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}

	connector, err := mysqldriver.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}
