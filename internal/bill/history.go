package bill

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const billBucketName = "bills"

// DB defines the interface for bill history persistence
type DB interface {
	// SaveBill writes a finalized bill to history
	SaveBill(stored *StoredBill) error

	// GetBill retrieves a stored bill by ID
	GetBill(id string) (*StoredBill, error)

	// ListBills returns all stored bills, most recently saved first
	ListBills() ([]*StoredBill, error)

	// DeleteBill removes a stored bill
	DeleteBill(id string) error

	// DeleteAllBills removes every stored bill
	DeleteAllBills() error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(billBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveBill writes a finalized bill to history. The full record is written
// each time; there is no incremental patching.
func (b *BoltDB) SaveBill(stored *StoredBill) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billBucketName))
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshaling bill: %w", err)
		}
		return bucket.Put([]byte(stored.ID), data)
	})
}

// GetBill retrieves a stored bill by ID
func (b *BoltDB) GetBill(id string) (*StoredBill, error) {
	var stored *StoredBill
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("bill not found: %s", id)
		}
		return json.Unmarshal(data, &stored)
	})
	if err != nil {
		return nil, err
	}
	if stored.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("bill %s has schema version %d, newer than this build supports", id, stored.SchemaVersion)
	}
	return stored, nil
}

// ListBills returns all stored bills, most recently saved first. Records
// written by a newer schema than this build understands are skipped with a
// warning rather than misread.
func (b *BoltDB) ListBills() ([]*StoredBill, error) {
	bills := make([]*StoredBill, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var stored StoredBill
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("unmarshaling bill: %w", err)
			}
			if stored.SchemaVersion > SchemaVersion {
				slog.Warn("Skipping bill with unknown schema version", "id", string(k), "schema_version", stored.SchemaVersion)
				return nil
			}
			bills = append(bills, &stored)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(bills, func(i, j int) bool {
		return bills[i].SavedAt.After(bills[j].SavedAt)
	})
	return bills, nil
}

// DeleteBill removes a stored bill
func (b *BoltDB) DeleteBill(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billBucketName))
		return bucket.Delete([]byte(id))
	})
}

// DeleteAllBills removes every stored bill
func (b *BoltDB) DeleteAllBills() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(billBucketName)); err != nil {
			return fmt.Errorf("deleting bucket: %w", err)
		}
		_, err := tx.CreateBucket([]byte(billBucketName))
		return err
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
