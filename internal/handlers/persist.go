package handlers

import (
	"encoding/json"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shopsync/internal/remote"
)

// RemoteDocument is one persisted document row: collection path, document id
// and the JSON-encoded body.
type RemoteDocument struct {
	Collection string `gorm:"primaryKey;size:512"`
	DocID      string `gorm:"primaryKey;size:256"`
	Data       string
}

func (RemoteDocument) TableName() string { return "remote_documents" }

// Persistence stores documents durably behind the in-memory hub. The hub is
// the source of truth while the process lives; persistence seeds it on start
// and follows every commit.
type Persistence struct {
	db *gorm.DB
}

// OpenPersistence connects to the postgres DSN and migrates the document
// table.
func OpenPersistence(dsn string) (*Persistence, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty persistence DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open document storage: %w", err)
	}
	if err := db.AutoMigrate(&RemoteDocument{}); err != nil {
		return nil, fmt.Errorf("migrate document storage: %w", err)
	}
	return &Persistence{db: db}, nil
}

// NewPersistence wraps an already opened gorm handle (tests use sqlite here).
func NewPersistence(db *gorm.DB) (*Persistence, error) {
	if err := db.AutoMigrate(&RemoteDocument{}); err != nil {
		return nil, err
	}
	return &Persistence{db: db}, nil
}

// SeedInto loads every persisted document into the hub, without notifying
// listeners (none are attached this early).
func (p *Persistence) SeedInto(hub *remote.MemoryStore) error {
	var rows []RemoteDocument
	if err := p.db.Find(&rows).Error; err != nil {
		return fmt.Errorf("load persisted documents: %w", err)
	}
	byCollection := make(map[string][]remote.Document)
	for _, row := range rows {
		var doc remote.Document
		if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
			return fmt.Errorf("decode persisted document %s/%s: %w", row.Collection, row.DocID, err)
		}
		byCollection[row.Collection] = append(byCollection[row.Collection], doc)
	}
	for path, docs := range byCollection {
		hub.Collection(path).Seed(docs)
	}
	return nil
}

// Apply mirrors one committed batch into storage, as a single transaction.
func (p *Persistence) Apply(collection string, ops []remote.WriteOp) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if op.Delete {
				if err := tx.Where("collection = ? AND doc_id = ?", collection, op.ID).
					Delete(&RemoteDocument{}).Error; err != nil {
					return err
				}
				continue
			}
			data := op.Data
			if op.Merge {
				var row RemoteDocument
				err := tx.Where("collection = ? AND doc_id = ?", collection, op.ID).First(&row).Error
				if err == nil {
					merged := remote.Document{}
					if err := json.Unmarshal([]byte(row.Data), &merged); err == nil {
						for k, v := range op.Data {
							merged[k] = v
						}
						data = merged
					}
				} else if err != gorm.ErrRecordNotFound {
					return err
				}
			}
			data["id"] = op.ID
			encoded, err := json.Marshal(data)
			if err != nil {
				return err
			}
			row := RemoteDocument{Collection: collection, DocID: op.ID, Data: string(encoded)}
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
