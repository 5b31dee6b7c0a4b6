package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailbackup/config"
	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/models"
)

type Repositories struct {
	EmailAccountRepository  interfaces.EmailAccountRepository
	FolderMarkerRepository  interfaces.FolderMarkerRepository
	ArchivedEmailRepository interfaces.ArchivedEmailRepository
	SyncRunRepository       interfaces.SyncRunRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		EmailAccountRepository:  NewEmailAccountRepository(db),
		FolderMarkerRepository:  NewFolderMarkerRepository(db),
		ArchivedEmailRepository: NewArchivedEmailRepository(db),
		SyncRunRepository:       NewSyncRunRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.EmailAccount{},
		&models.FolderMarker{},
		&models.ArchivedEmail{},
		&models.SyncRun{},
	)

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
