package main

import (
	"context"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
)

// nameSet remembers product names across all dump files and the database.
//
// The bloom filter answers most lookups. A hit may be a false positive, so it
// is confirmed with an exact lookup before the name is reported as taken.
type nameSet struct {
	filter  *bloom.BloomFilter
	confirm func(ctx context.Context, name string) (bool, error)
}

func newNameSet(existing []string, confirm func(ctx context.Context, name string) (bool, error)) *nameSet {
	s := &nameSet{
		filter:  bloom.NewWithEstimates(max(bloomCapacity, uint(len(existing))*2), bloomFPR),
		confirm: confirm,
	}
	for _, name := range existing {
		s.filter.AddString(normalizeName(name))
	}
	return s
}

// taken reports whether name was already imported or stored.
func (s *nameSet) taken(ctx context.Context, name string) (bool, error) {
	key := normalizeName(name)
	if !s.filter.TestString(key) {
		return false, nil
	}
	return s.confirm(ctx, key)
}

// add records name as imported.
func (s *nameSet) add(name string) {
	s.filter.AddString(normalizeName(name))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
