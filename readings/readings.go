// Package readings stores named snapshots of gateway state so they can be
// compared later, for example when placing the gateway in different rooms.
package readings

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
)

var (
	bucketReadings = []byte("readings")

	// ErrNotFound is returned when a reading does not exist.
	ErrNotFound = errors.New("reading not found")

	// ErrInvalid is returned for readings that cannot be saved.
	ErrInvalid = errors.New("invalid reading")
)

// Reading is a saved measurement.
type Reading struct {
	ID       uint64                    `json:"id"`
	UUID     string                    `json:"uuid"`
	Name     string                    `json:"name"`
	Location string                    `json:"location,omitempty"`
	Notes    string                    `json:"notes,omitempty"`
	Time     time.Time                 `json:"time"`
	Main     *gateway.MainData         `json:"main,omitempty"`
	Cell     *gateway.CellDataRoot     `json:"cell,omitempty"`
	Clients  *gateway.ClientDeviceData `json:"clients,omitempty"`
	Sim      *gateway.SimDataRoot      `json:"sim,omitempty"`
}

// NewReading builds a reading from a state snapshot. The name is required.
func NewReading(name, location, notes string, state gateway.State, at time.Time) (*Reading, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	return &Reading{
		UUID:     uuid.NewString(),
		Name:     name,
		Location: strings.TrimSpace(location),
		Notes:    strings.TrimSpace(notes),
		Time:     at,
		Main:     state.Main,
		Cell:     state.Cell,
		Clients:  state.Clients,
		Sim:      state.Sim,
	}, nil
}

// BoltStore keeps readings in a BoltDB file, keyed by insertion sequence.
type BoltStore struct {
	db *bolt.DB

	mu     sync.Mutex
	subs   map[int]func([]*Reading)
	nextID int
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReadings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db, subs: make(map[int]func([]*Reading))}, nil
}

// Insert saves r and assigns its ID.
func (s *BoltStore) Insert(r *Reading) error {
	if r == nil || strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReadings)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketReadings)
		}
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		r.ID = id
		if r.UUID == "" {
			r.UUID = uuid.NewString()
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// Get returns the reading with id.
func (s *BoltStore) Get(id uint64) (*Reading, error) {
	var r Reading
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReadings)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketReadings)
		}
		data := b.Get(itob(id))
		if data == nil {
			return fmt.Errorf("reading %d: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// All returns every reading in insertion order.
func (s *BoltStore) All() ([]*Reading, error) {
	var out []*Reading
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReadings)
		if b == nil {
			return nil
		}
		out = make([]*Reading, 0, b.Stats().KeyN)
		return b.ForEach(func(_, v []byte) error {
			var r Reading
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, &r)
			return nil
		})
	})
	return out, err
}

// Delete removes the reading with id.
func (s *BoltStore) Delete(id uint64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReadings)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketReadings)
		}
		key := itob(id)
		if b.Get(key) == nil {
			return fmt.Errorf("reading %d: %w", id, ErrNotFound)
		}
		return b.Delete(key)
	})
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// Subscribe calls fn with the full list after every change. Returns an
// unsubscribe function.
func (s *BoltStore) Subscribe(fn func([]*Reading)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *BoltStore) notify() {
	s.mu.Lock()
	subs := make([]func([]*Reading), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	all, err := s.All()
	if err != nil {
		return
	}
	for _, fn := range subs {
		fn(all)
	}
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// itob encodes id big-endian so bolt's byte ordering matches insertion order.
func itob(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}
