package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// prior is the value a key held before the first write inside a savepoint.
type prior struct {
	value   []byte
	present bool
}

// SimpleKV keeps the whole state in memory. Each open savepoint carries an
// undo log of the keys it touched.
type SimpleKV struct {
	Internal map[string][]byte
	undo     []map[string]prior
}

func NewSimpleKV() *SimpleKV {
	return &SimpleKV{Internal: make(map[string][]byte)}
}

func (skv *SimpleKV) Get(key string) ([]byte, error) {
	value, ok := skv.Internal[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

func (skv *SimpleKV) Put(key string, value []byte) error {
	skv.record(key)
	stored := make([]byte, len(value))
	copy(stored, value)
	skv.Internal[key] = stored
	return nil
}

func (skv *SimpleKV) Del(key string) error {
	_, ok := skv.Internal[key]
	if !ok {
		return ErrKeyNotFound
	}

	skv.record(key)
	delete(skv.Internal, key)
	return nil
}

func (skv *SimpleKV) record(key string) {
	if len(skv.undo) == 0 {
		return
	}
	top := skv.undo[len(skv.undo)-1]
	if _, seen := top[key]; seen {
		return
	}
	value, present := skv.Internal[key]
	top[key] = prior{value: value, present: present}
}

func (skv *SimpleKV) Begin() error {
	skv.undo = append(skv.undo, make(map[string]prior))
	return nil
}

// Commit folds the innermost undo log into its parent, so an outer
// Rollback still restores what the inner savepoint overwrote.
func (skv *SimpleKV) Commit() error {
	if len(skv.undo) == 0 {
		return ErrNoSavepoint
	}
	top := skv.undo[len(skv.undo)-1]
	skv.undo = skv.undo[:len(skv.undo)-1]
	if len(skv.undo) == 0 {
		return nil
	}
	parent := skv.undo[len(skv.undo)-1]
	for key, p := range top {
		if _, seen := parent[key]; !seen {
			parent[key] = p
		}
	}
	return nil
}

func (skv *SimpleKV) Rollback() error {
	if len(skv.undo) == 0 {
		return ErrNoSavepoint
	}
	top := skv.undo[len(skv.undo)-1]
	skv.undo = skv.undo[:len(skv.undo)-1]
	for key, p := range top {
		if p.present {
			skv.Internal[key] = p.value
		} else {
			delete(skv.Internal, key)
		}
	}
	return nil
}

func (skv *SimpleKV) Depth() int {
	return len(skv.undo)
}

func (skv *SimpleKV) Close() error {
	return nil
}

func (skv *SimpleKV) String() string {
	ret := "{"
	for _, key := range skv.keys() {
		ret += fmt.Sprintf("%s->%x", key, skv.Internal[key])
		ret += ","
	}
	return ret + "}"
}

// Hash digests the state in key order.
func (skv *SimpleKV) Hash() (string, error) {
	h := sha256.New()
	for _, key := range skv.keys() {
		HashEntry(h, key, skv.Internal[key])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (skv *SimpleKV) keys() []string {
	keys := make([]string, 0, len(skv.Internal))
	for key := range skv.Internal {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
