package db

import (
	"bytes"
	"context"
	"sort"
)

// Txn buffers writes over a base store. Reads see the buffered writes.
// Nothing reaches the base store until Commit.
type Txn struct {
	base    Store
	writes  map[string][]byte
	deletes map[string]struct{}
}

func NewTxn(base Store) *Txn {
	return &Txn{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (t *Txn) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, ok := t.deletes[k]; ok {
		return nil, ErrNotFound
	}
	if v, ok := t.writes[k]; ok {
		return append([]byte(nil), v...), nil
	}
	return t.base.Get(key)
}

func (t *Txn) Put(key, value []byte) error {
	k := string(key)
	delete(t.deletes, k)
	t.writes[k] = append([]byte(nil), value...)
	return nil
}

func (t *Txn) Delete(key []byte) error {
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = struct{}{}
	return nil
}

// Iterate merges the base store view with the pending writes
func (t *Txn) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	err := t.base.Iterate(prefix, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	})
	if err != nil {
		return err
	}
	for k, v := range t.writes {
		if bytes.HasPrefix([]byte(k), prefix) {
			merged[k] = v
		}
	}
	for k := range t.deletes {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), append([]byte(nil), merged[k]...)); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of pending writes and deletes
func (t *Txn) Len() int {
	return len(t.writes) + len(t.deletes)
}

// Commit writes all pending changes to the base store in one batch
func (t *Txn) Commit() error {
	if t.Len() == 0 {
		return nil
	}
	batch := new(Batch)
	for k := range t.deletes {
		batch.Delete([]byte(k))
	}
	for k, v := range t.writes {
		batch.Put([]byte(k), v)
	}
	return t.base.Write(batch)
}

type txnKey struct{}

// WithTxn attaches txn to ctx
func WithTxn(ctx context.Context, txn *Txn) context.Context {
	return context.WithValue(ctx, txnKey{}, txn)
}

// TxnFromContext returns the transaction carried by ctx, or nil
func TxnFromContext(ctx context.Context) *Txn {
	if ctx == nil {
		return nil
	}
	txn, _ := ctx.Value(txnKey{}).(*Txn)
	return txn
}
