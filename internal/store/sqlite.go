package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xiaoyue/companion/internal/model/profile"
)

// profileRecord maps one user profile to a sqlite row. The profile itself
// stays a JSON payload so the row layout survives preference additions.
type profileRecord struct {
	UserID        string `gorm:"primaryKey;column:user_id"`
	SchemaVersion int    `gorm:"column:schema_version"`
	Payload       string `gorm:"column:payload"`
	UpdatedAt     time.Time
}

func (profileRecord) TableName() string {
	return "user_profiles"
}

// SqliteBackend persists the document in a local sqlite database. Save
// keeps full-document semantics: the table is replaced in one transaction.
type SqliteBackend struct {
	db *gorm.DB
}

// NewSqliteBackend opens (and migrates) the database at path.
func NewSqliteBackend(path string) (*SqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Exec("PRAGMA journal_mode = WAL;")
	}

	if err := db.AutoMigrate(&profileRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	return &SqliteBackend{db: db}, nil
}

// Load reads every stored profile row.
func (b *SqliteBackend) Load() (*Document, error) {
	var records []profileRecord
	if err := b.db.Order("user_id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	doc := &Document{SchemaVersion: SchemaVersion, Profiles: make([]*profile.UserProfile, 0, len(records))}
	for _, record := range records {
		if record.SchemaVersion > SchemaVersion {
			return nil, fmt.Errorf("unsupported schema version %d for user %s", record.SchemaVersion, record.UserID)
		}
		p := &profile.UserProfile{}
		if err := json.Unmarshal([]byte(record.Payload), p); err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", record.UserID, err)
		}
		doc.Profiles = append(doc.Profiles, p)
	}
	return doc, nil
}

// Save replaces the stored collection with doc.
func (b *SqliteBackend) Save(doc *Document) error {
	records := make([]profileRecord, 0, len(doc.Profiles))
	for _, p := range doc.Profiles {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode profile %s: %w", p.UserID, err)
		}
		records = append(records, profileRecord{
			UserID:        p.UserID,
			SchemaVersion: doc.SchemaVersion,
			Payload:       string(payload),
		})
	}

	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&profileRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
}
