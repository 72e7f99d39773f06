package db

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB implements Store with badger
type BadgerDB struct {
	conn *badger.DB
}

// NewBadgerDB opens (or creates) a badger database in the given directory
func NewBadgerDB(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	conn, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDB{conn: conn}, nil
}

func (b *BadgerDB) Close() error {
	return b.conn.Close()
}

func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := b.conn.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *BadgerDB) Put(key, value []byte) error {
	return b.conn.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *BadgerDB) Delete(key []byte) error {
	return b.conn.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *BadgerDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return b.conn.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Write applies the batch inside a single badger transaction
func (b *BadgerDB) Write(batch *Batch) error {
	return b.conn.Update(func(txn *badger.Txn) error {
		for _, op := range batch.ops {
			var err error
			if op.delete {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
