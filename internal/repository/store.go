package repository

import (
	"fmt"

	"github.com/ECGOPS/OPSOMS-sub004/internal/config"
	"github.com/ECGOPS/OPSOMS-sub004/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenStore opens the device-local database and migrates the logical stores
// (queue, failed register, id links, record cache, device keys). Failure is
// reported to the caller; the host process decides how to surface it.
func OpenStore(cfg config.StorageConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	err = db.AutoMigrate(
		&model.PendingIntent{},
		&model.FailedIntent{},
		&model.IDLink{},
		&model.CachedRecord{},
		&model.DeviceClient{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	return db, nil
}
