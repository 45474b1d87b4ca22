package storage

import "sync"

// Overlay buffers writes against a backing database and applies them only when
// Flush is called. Instructions run against an overlay so that a failure at
// any point leaves the backing store untouched.
type Overlay struct {
	mu      sync.RWMutex
	backing Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay wraps the backing database in a fresh write buffer.
func NewOverlay(backing Database) *Overlay {
	return &Overlay{
		backing: backing,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := string(key)
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return nil, ErrKeyNotFound
	}
	if value, ok := o.writes[k]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.backing.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return false, nil
	}
	if _, ok := o.writes[k]; ok {
		return true, nil
	}
	return o.backing.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// Close discards the buffer without touching the backing store.
func (o *Overlay) Close() {}

// Flush applies the buffered mutations to the backing database. The buffer is
// drained as entries land so a successful flush leaves the overlay empty.
func (o *Overlay) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k := range o.deletes {
		if err := o.backing.Delete([]byte(k)); err != nil {
			return err
		}
		delete(o.deletes, k)
	}
	for k, value := range o.writes {
		if err := o.backing.Put([]byte(k), value); err != nil {
			return err
		}
		delete(o.writes, k)
	}
	return nil
}

// Discard drops all buffered mutations.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}
