package storage

import (
	"errors"
	"fmt"
)

var errStagingClosed = errors.New("storage: staging already committed or discarded")

// Staging buffers writes on top of a Database so a unit of work can be applied
// all at once or dropped entirely. Reads observe staged writes before falling
// through to the base store.
//
// Staging is not safe for concurrent use.
type Staging struct {
	base    Database
	writes  map[string][]byte
	deletes map[string]struct{}
	order   []string
	closed  bool
}

// NewStaging opens a staging area over base.
func NewStaging(base Database) *Staging {
	return &Staging{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (s *Staging) touch(key string) {
	if _, ok := s.writes[key]; ok {
		return
	}
	if _, ok := s.deletes[key]; ok {
		return
	}
	s.order = append(s.order, key)
}

func (s *Staging) Get(key []byte) ([]byte, error) {
	if s.closed {
		return nil, errStagingClosed
	}
	k := string(key)
	if value, ok := s.writes[k]; ok {
		return append([]byte(nil), value...), nil
	}
	if _, ok := s.deletes[k]; ok {
		return nil, ErrNotFound
	}
	return s.base.Get(key)
}

func (s *Staging) Has(key []byte) (bool, error) {
	if s.closed {
		return false, errStagingClosed
	}
	k := string(key)
	if _, ok := s.writes[k]; ok {
		return true, nil
	}
	if _, ok := s.deletes[k]; ok {
		return false, nil
	}
	return s.base.Has(key)
}

func (s *Staging) Put(key []byte, value []byte) error {
	if s.closed {
		return errStagingClosed
	}
	k := string(key)
	s.touch(k)
	delete(s.deletes, k)
	s.writes[k] = append([]byte(nil), value...)
	return nil
}

func (s *Staging) Delete(key []byte) error {
	if s.closed {
		return errStagingClosed
	}
	k := string(key)
	s.touch(k)
	delete(s.writes, k)
	s.deletes[k] = struct{}{}
	return nil
}

// Pending reports the number of distinct keys touched.
func (s *Staging) Pending() int {
	return len(s.writes) + len(s.deletes)
}

// Commit writes every staged mutation to the base store in a single batch.
func (s *Staging) Commit() error {
	if s.closed {
		return errStagingClosed
	}
	s.closed = true
	if s.Pending() == 0 {
		return nil
	}
	batch := s.base.NewBatch()
	for _, k := range s.order {
		if value, ok := s.writes[k]; ok {
			if err := batch.Put([]byte(k), value); err != nil {
				return fmt.Errorf("stage put: %w", err)
			}
			continue
		}
		if _, ok := s.deletes[k]; ok {
			if err := batch.Delete([]byte(k)); err != nil {
				return fmt.Errorf("stage delete: %w", err)
			}
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Discard drops every staged mutation. Calling Discard after Commit is a no-op.
func (s *Staging) Discard() {
	s.closed = true
	s.writes = make(map[string][]byte)
	s.deletes = make(map[string]struct{})
	s.order = nil
}
