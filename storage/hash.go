package storage

import (
	"encoding/binary"
	"hash"
)

// HashEntry feeds one length-prefixed entry into h. Every KV implementation
// uses it so equal states hash equally regardless of backend.
func HashEntry(h hash.Hash, key string, value []byte) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(key)))
	h.Write(size[:])
	h.Write([]byte(key))
	binary.BigEndian.PutUint64(size[:], uint64(len(value)))
	h.Write(size[:])
	h.Write(value)
}
