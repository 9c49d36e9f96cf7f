package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// ErrNoSession is returned by Store.Load when nothing is persisted.
	ErrNoSession = errors.New("no stored session")
	// ErrCorrupt is returned by Store.Load when the record cannot be decoded.
	ErrCorrupt = errors.New("stored session is corrupt")
)

var (
	bucketSession = []byte("session")
	sessionKey    = []byte("current")
)

// Store persists a single session record.
type Store interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context) (State, error)
	Delete(ctx context.Context) error
}

type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (creating if needed) the session database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Save(_ context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Put(sessionKey, data)
	})
}

func (s *BoltStore) Load(_ context.Context) (State, error) {
	var state State
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSession).Get(sessionKey)
		if data == nil {
			return ErrNoSession
		}
		if err := json.Unmarshal(data, &state); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		return nil
	})
	if err != nil {
		return State{}, err
	}
	return state, nil
}

// Delete is a no-op when nothing is stored.
func (s *BoltStore) Delete(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(sessionKey)
	})
}

// put writes raw bytes; tests use it to plant corrupt records.
func (s *BoltStore) put(data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Put(sessionKey, data)
	})
}
