package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"shopsync/internal/model"
)

// Store owns the embedded relational cache. All domain stores share one Store;
// writes go through a single writer lock so transactions never race, reads are
// served directly from the gorm handle.
type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger

	// writeMu enforces the single-writer discipline across all domain stores.
	writeMu sync.Mutex

	reg *registry
}

// Open opens (and creates if needed) the cache database at path.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty store path")
	}
	return open(path, log)
}

// OpenMemory opens a private in-memory cache, used by tests and ephemeral
// runs. Every call gets its own database; the connection pool inside one
// Store still shares it.
func OpenMemory(log *zap.SugaredLogger) (*Store, error) {
	dsn := fmt.Sprintf("file:mem_%s?mode=memory&cache=shared", uuid.NewString())
	return open(dsn, log)
}

func open(dsn string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	dial := gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	return &Store{db: db, log: log, reg: newRegistry()}, nil
}

// Migrate ensures all cache tables exist.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&model.Product{},
		&model.Category{},
		&model.Brand{},
		&model.CartLine{},
		&model.FavoriteEntry{},
		&model.Order{},
		&model.OrderLine{},
		&model.UserProfile{},
		&model.ChecksumRecord{},
	)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// write runs fn inside a transaction under the writer lock. When fn reports a
// change and the transaction commits, live queries over the named tables are
// re-evaluated. A fn that reports changed=false produces no notification at
// all; this is what keeps field-identical upserts free of reactive thrash.
func (s *Store) write(ctx context.Context, tables []string, fn func(tx *gorm.DB) (changed bool, err error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = fn(tx)
		return err
	})
	if err != nil {
		return err
	}
	if changed {
		s.reg.notify(tables...)
	}
	return nil
}

// UpsertStats summarizes one upsert call.
type UpsertStats struct {
	Inserted int
	Updated  int
	Skipped  int
}

// Changed reports whether the upsert wrote anything.
func (st UpsertStats) Changed() bool { return st.Inserted > 0 || st.Updated > 0 }

func (st UpsertStats) String() string {
	return fmt.Sprintf("inserted=%d updated=%d skipped=%d", st.Inserted, st.Updated, st.Skipped)
}
