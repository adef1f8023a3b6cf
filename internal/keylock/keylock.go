// Package keylock serializes work per string key with a fixed set of
// striped locks. Two keys may share a stripe; a key never maps to two.
// Waiting for a stripe honours context cancellation.
package keylock

import (
	"context"
	"hash/fnv"
)

// DefaultStripes is used when New is given n <= 0.
const DefaultStripes = 256

// Striped is a fixed-size array of one-slot semaphores addressed by key
// hash. The zero value is not usable; call New.
type Striped struct {
	stripes []chan struct{}
}

// New returns a Striped lock with n stripes.
func New(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	s := &Striped{stripes: make([]chan struct{}, n)}
	for i := range s.stripes {
		s.stripes[i] = make(chan struct{}, 1)
	}
	return s
}

// Lock acquires the stripe for key and returns its unlock function. It
// gives up with ctx.Err() when ctx ends first.
//
//	unlock, err := locks.Lock(ctx, widgetID+"/"+sessionID)
//	if err != nil {
//		return err
//	}
//	defer unlock()
func (s *Striped) Lock(ctx context.Context, key string) (unlock func(), err error) {
	ch := s.stripes[s.index(key)]
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Striped) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(s.stripes)))
}
