package geopoint

import (
	"github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure/v2"
)

// NewDedupeLRUFunc returns a predicate that passes a point only the first
// time its exact value (coordinates and all optional attributes) is seen
// among the last size distinct points.
// Providers replaying cached fixes, or files with repeated lines, produce
// these; a moving device never reports the same timestamp twice.
// The returned func is not safe for concurrent use.
func NewDedupeLRUFunc(size int) func(GeoPoint) bool {
	cache, err := lru.New[uint64, struct{}](size)
	if err != nil {
		// Only a non-positive size errors.
		panic(err)
	}
	return func(p GeoPoint) bool {
		hash, err := hashstructure.Hash(p, hashstructure.FormatV2, nil)
		if err != nil {
			return true
		}
		if cache.Contains(hash) {
			return false
		}
		cache.Add(hash, struct{}{})
		return true
	}
}
