package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/customeros/mailbackup/config"
)

func NewConnection(dbConfig *config.DatabaseConfig) (*gorm.DB, error) {
	if err := validateConfig(dbConfig); err != nil {
		return nil, err
	}

	portInt, err := strconv.Atoi(dbConfig.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid port number: %w", err)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host, portInt, dbConfig.User, dbConfig.Password, dbConfig.DBName, dbConfig.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel(dbConfig.LogLevel)),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return db, nil
}

func logLevel(level string) gormlogger.LogLevel {
	switch strings.ToUpper(level) {
	case "SILENT":
		return gormlogger.Silent
	case "ERROR":
		return gormlogger.Error
	case "INFO":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func validateConfig(dbConfig *config.DatabaseConfig) error {
	switch {
	case dbConfig == nil:
		return errors.New("database config is nil")
	case dbConfig.Host == "":
		return errors.New("database host config is empty")
	case dbConfig.Port == "":
		return errors.New("database port config is empty")
	case dbConfig.User == "":
		return errors.New("database user config is empty")
	case dbConfig.Password == "":
		return errors.New("database password config is empty")
	case dbConfig.DBName == "":
		return errors.New("database name config is empty")
	case dbConfig.SSLMode == "":
		return errors.New("database SSLMode config is empty")
	}
	return nil
}
