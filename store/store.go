package store

import (
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/pkg/errors"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
)

// DB is the single-writer store over one SQLite file (spec.md §4.3,
// "Persisted state layout: one relational database file at db_path").
type DB struct {
	gorm *gorm.DB
}

// Open opens (creating if necessary) the database file at dbPath, sets the
// journaling pragmas spec.md §4.3 requires, and migrates every table named
// in spec.md §3.
func Open(dbPath string) (*DB, error) {
	gdb, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", dbPath)
	}

	// "serialised journaling, normal fsync, write-ahead-log style
	// journaling, a busy timeout of 30s to tolerate reads" (spec.md §4.3).
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
		"PRAGMA foreign_keys=ON",
	} {
		if err := gdb.Exec(pragma).Error; err != nil {
			gdb.Close()
			return nil, errors.Wrapf(err, "store: %s", pragma)
		}
	}

	db := &DB{gorm: gdb}
	if err := db.migrate(); err != nil {
		gdb.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	err := db.gorm.AutoMigrate(
		&model.Deploy{},
		&model.Mint{},
		&model.Bitmap{},
		&model.Parcel{},
		&model.Wallet{},
		&model.Block{},
		&model.ErrorBlock{},
		&model.FailedInscription{},
		&model.BlockStats{},
		&model.AddressHistory{},
		&model.BitmapPattern{},
	).Error
	if err != nil {
		return errors.Wrap(err, "store: migrate")
	}
	return nil
}

// Root returns a Context over the database's root connection, for
// single-statement operations that don't need an explicit transaction.
func (db *DB) Root() Context {
	return &dbContext{db: db.gorm}
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	err := db.gorm.Close()
	db.gorm = nil
	return err
}
