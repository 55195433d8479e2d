// Package blockmap provides the two neighbor-lookup contracts the fusion
// kernels consume: a sharded concurrent hash map from block key to block
// slot (the "Hashed" addressing mode used by ray casting, where access
// patterns are arbitrary), and a precomputed 27-entry neighbor-index table
// per active block (the "Indexed" mode used by the extraction kernels,
// where the active set is fixed for the whole kernel invocation).
//
// The map itself is an implementation detail the kernels never see past its
// Find/BuildFromKeys contract; allocation policy (which blocks should
// exist) is a collaborator's concern.
package blockmap

import (
	"encoding/binary"
	"sync"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/soypat/tsdfusion/voxel"
)

// shardCount must be a power of two.
const shardCount = 64

type shard struct {
	mu sync.RWMutex
	m  map[voxel.Key]int64
}

// Map is a sharded, read-mostly concurrent map from block key to block
// slot. Safe for concurrent Find calls from many goroutines once built;
// Set/BuildFromKeys are meant to run single-threaded during setup.
type Map struct {
	shards [shardCount]*shard
}

// New returns an empty Map.
func New() *Map {
	m := &Map{}
	for i := range m.shards {
		m.shards[i] = &shard{m: make(map[voxel.Key]int64)}
	}
	return m
}

// BuildFromKeys populates the map from a dense block_keys table, slot i
// holding key keys[i].
func BuildFromKeys(keys []voxel.Key) *Map {
	m := New()
	for i, k := range keys {
		m.Set(k, int64(i))
	}
	return m
}

// Set inserts or overwrites the slot for key k.
func (m *Map) Set(k voxel.Key, slot int64) {
	s := m.shardFor(k)
	s.mu.Lock()
	s.m[k] = slot
	s.mu.Unlock()
}

// Find looks up the block slot for key k. A missing key means empty space,
// per the kernel's hash-map contract.
func (m *Map) Find(k voxel.Key) (slot int64, ok bool) {
	s := m.shardFor(k)
	s.mu.RLock()
	slot, ok = s.m[k]
	s.mu.RUnlock()
	return slot, ok
}

func (m *Map) shardFor(k voxel.Key) *shard {
	return m.shards[hashKey(k)&(shardCount-1)]
}

func hashKey(k voxel.Key) uint64 {
	var b [12]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(k.X))
	binary.LittleEndian.PutUint32(b[4:8], uint32(k.Y))
	binary.LittleEndian.PutUint32(b[8:12], uint32(k.Z))
	return xxhash.Sum64(b[:])
}
