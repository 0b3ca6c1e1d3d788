package db

import (
	"database/sql"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DatabaseConnection struct {
	db    *gorm.DB
	sqlDb *sql.DB
}

// Connect opens the configured database and runs migrations. The returned
// connection is passed explicitly to every component that needs durable state.
func Connect() (*DatabaseConnection, error) {
	viper.AutomaticEnv()

	dbType := viper.GetString("database.type")
	if dbType == "" {
		dbType = "sqlite"
	}

	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(viper.GetString("database.path"))
	case "postgres":
		dsn := viper.GetString("database.dsn")
		if dsn == "" {
			dsn = viper.GetString("POSTGRES_DSN")
		}
		if dsn == "" {
			return nil, fmt.Errorf("database.dsn not set for postgres")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database type: %s", dbType)
	}

	return open(dialector)
}

// ConnectSQLite opens a sqlite database at the given path, ignoring the
// configured backend. Used by tests and one-off tooling.
func ConnectSQLite(path string) (*DatabaseConnection, error) {
	return open(sqlite.Open(path))
}

func open(dialector gorm.Dialector) (*DatabaseConnection, error) {
	newLogger := logger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	if err := db.AutoMigrate(&Target{}, &ScanResult{}, &ExecutionLog{}, &ExecutionCheckpoint{}); err != nil {
		log.Error().Err(err).Msg("Failed to migrate database")
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get underlying database connection")
		return nil, err
	}
	if v := viper.GetInt("db.max_idle_conns"); v > 0 {
		sqlDB.SetMaxIdleConns(v)
	}
	if v := viper.GetInt("db.max_open_conns"); v > 0 {
		sqlDB.SetMaxOpenConns(v)
	}
	if v := viper.GetDuration("db.conn_max_lifetime"); v > 0 {
		sqlDB.SetConnMaxLifetime(v)
	}

	return &DatabaseConnection{
		db:    db,
		sqlDb: sqlDB,
	}, nil
}

// DB exposes the underlying gorm handle.
func (d *DatabaseConnection) DB() *gorm.DB {
	return d.db
}

// SQLDB exposes the underlying sql.DB handle.
func (d *DatabaseConnection) SQLDB() *sql.DB {
	return d.sqlDb
}

// Close closes the underlying database handle.
func (d *DatabaseConnection) Close() error {
	return d.sqlDb.Close()
}
