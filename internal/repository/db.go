package repository

import (
	"chatcore/internal/entity"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the SQLite database at dsn and migrates the schema.
// All repositories share the returned handle; the store's transaction
// isolation is what gives each mutating call its atomicity.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&entity.UserProfile{},
		&entity.Friendship{},
		&entity.FriendRequest{},
		&entity.Conversation{},
		&entity.Participant{},
		&entity.Message{},
		&entity.Attachment{},
		&entity.ReadReceipt{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
