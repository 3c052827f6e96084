package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/learnquest/models"
)

var db *gorm.DB

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Streak{},
		&models.Profile{},
		&models.XPEvent{},
		&models.DailyBonusClaim{},
		&models.Notification{},
	}
}

// InitDatabase establishes a connection to MySQL using configuration values and performs automatic migrations.
func InitDatabase(modelDefs ...interface{}) *gorm.DB {
	if db != nil {
		return db
	}

	cfg := Get()
	var dsn string
	if cfg.DatabaseURI != "" {
		dsn = cfg.DatabaseURI
	} else {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)
	}

	var err error
	db, err = gorm.Open(mysql.Open(dsn), GormConfig(cfg.LogLevel))
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	// Recycle idle connections before the server's wait_timeout does.
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	// Ping at boot so network/auth problems surface before the first request.
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("database ping failed: %v", err)
	}

	if err := Migrate(db, modelDefs...); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	return db
}

// GormConfig builds the gorm configuration shared by the server and tests.
// TranslateError lets callers match gorm.ErrDuplicatedKey across dialects.
func GormConfig(level string) *gorm.Config {
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(level),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

// Migrate creates missing tables and adds columns introduced after the first release.
func Migrate(conn *gorm.DB, modelDefs ...interface{}) error {
	if len(modelDefs) == 0 {
		modelDefs = Models()
	}
	for _, model := range modelDefs {
		if !conn.Migrator().HasTable(model) {
			if err := conn.AutoMigrate(model); err != nil {
				return fmt.Errorf("auto migration failed for %T: %w", model, err)
			}
			continue
		}
		// Safe, additive migrations: add missing columns only
		switch model.(type) {
		case *models.Streak:
			if !conn.Migrator().HasColumn(&models.Streak{}, "LoginDates") {
				if err := conn.Migrator().AddColumn(&models.Streak{}, "LoginDates"); err != nil {
					return fmt.Errorf("add streaks.login_dates: %w", err)
				}
			}
		case *models.Profile:
			if !conn.Migrator().HasColumn(&models.Profile{}, "LastActivityDate") {
				if err := conn.Migrator().AddColumn(&models.Profile{}, "LastActivityDate"); err != nil {
					return fmt.Errorf("add user_profiles.last_activity_date: %w", err)
				}
			}
		}
	}
	return nil
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// DB provides access to initialized gorm DB instance.
func DB() *gorm.DB {
	if db == nil {
		log.Fatal("database not initialized, call InitDatabase first")
	}
	return db
}
