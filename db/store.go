package db

import "errors"

// ErrNotFound is returned by Get when the key does not exist
var ErrNotFound = errors.New("key not found")

// KV is the minimal key-value surface shared by stores and transactions
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix, in key order
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Store is a persistent KV backend that can apply a batch atomically
type Store interface {
	KV
	Write(batch *Batch) error
	Close() error
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// Batch collects writes to be applied atomically by Store.Write
type Batch struct {
	ops []batchOp
}

func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: key, value: value})
}

func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: key, delete: true})
}

func (b *Batch) Len() int {
	return len(b.ops)
}

// Open returns a store for the configured engine: "leveldb", "badger" or "memory"
func Open(engine, path string) (Store, error) {
	switch engine {
	case "", "leveldb":
		return NewLevelDB(path)
	case "badger":
		return NewBadgerDB(path)
	case "memory":
		return NewMemLevelDB()
	default:
		return nil, errors.New("unknown storage engine: " + engine)
	}
}
