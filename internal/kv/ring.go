package kv

import (
	"hash/fnv"
	"sort"
)

type ringPoint struct {
	hash  uint64
	owner int
}

// Ring implements consistent hashing with virtual nodes. Each shard owns
// replicas points on a 64-bit ring, and a key belongs to the first point at
// or after its hash.
type Ring struct {
	points   []ringPoint
	replicas int
}

// NewRing builds a ring over shards 0..shards-1 with the given number of
// virtual nodes per shard.
func NewRing(shards, replicas int) *Ring {
	if replicas <= 0 {
		replicas = 100
	}
	r := &Ring{replicas: replicas}
	pts := make([]ringPoint, 0, shards*replicas)
	for s := 0; s < shards; s++ {
		for v := 0; v < replicas; v++ {
			// 0x9e3779b97f4a7c15 spreads sequential seeds across the ring.
			seed := (uint64(s)+1)*0x9e3779b97f4a7c15 + uint64(v)
			pts = append(pts, ringPoint{hash: mix64(seed), owner: s})
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].hash < pts[j].hash })
	r.points = pts
	return r
}

// Owner returns the shard index responsible for partition/key.
func (r *Ring) Owner(partition, key string) int {
	if len(r.points) == 0 {
		return 0
	}
	h := hashKey(partition, key)
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if i == len(r.points) {
		i = 0
	}
	return r.points[i].owner
}

func hashKey(partition, key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(partition))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key))
	return mix64(h.Sum64())
}

// mix64 is the fmix64 finalizer from MurmurHash3.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
