package storage

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("state")

// BoltDB stores state in a single bbolt file.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (or creates) the bbolt file at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(boltBucket).Get(key)
		if value == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), value...)
		return nil
	})
	return out, err
}

func (b *BoltDB) Has(key []byte) (bool, error) {
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(boltBucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (b *BoltDB) Put(key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

func (b *BoltDB) Delete(key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

func (b *BoltDB) NewBatch() Batch {
	return &boltBatch{db: b.db}
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

// boltBatch replays its operations inside one read-write transaction.
type boltBatch struct {
	db  *bolt.DB
	ops []memOp
}

func (b *boltBatch) Put(key []byte, value []byte) error {
	b.ops = append(b.ops, memOp{key: string(key), value: append([]byte(nil), value...)})
	return nil
}

func (b *boltBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memOp{key: string(key), delete: true})
	return nil
}

func (b *boltBatch) Len() int { return len(b.ops) }

func (b *boltBatch) Write() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, op := range b.ops {
			if op.delete {
				if err := bucket.Delete([]byte(op.key)); err != nil {
					return err
				}
				continue
			}
			if err := bucket.Put([]byte(op.key), op.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ops = nil
	return nil
}
