package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"

	"burnswap/core/types"
	"burnswap/native/exchange"
	"burnswap/token"
)

var (
	bucketExchange = []byte("exchange")
	bucketLedger   = []byte("ledger")
	bucketEvents   = []byte("events")

	keyExchangeConfig = []byte("config")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

// Store persists the exchange configuration, token ledger snapshots and the
// append-only event log in a single Bolt database.
type Store struct {
	db *bolt.DB
}

// NewStore initialises (and migrates) the BoltDB-backed store.
func NewStore(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketExchange, bucketLedger, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type storedExchangeConfig struct {
	SourceToken      string `json:"sourceToken"`
	TargetToken      string `json:"targetToken"`
	Ratio            string `json:"ratio"`
	WithdrawDeadline int64  `json:"withdrawDeadline"`
	Admin            string `json:"admin"`
}

// ExchangeConfig loads the singleton exchange configuration. It returns
// ErrNotFound before the first PutExchangeConfig.
func (s *Store) ExchangeConfig() (*exchange.Config, error) {
	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if value := tx.Bucket(bucketExchange).Get(keyExchangeConfig); value != nil {
			raw = append([]byte(nil), value...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	stored := &storedExchangeConfig{}
	if err := json.Unmarshal(raw, stored); err != nil {
		return nil, fmt.Errorf("storage: decode exchange config: %w", err)
	}
	ratio, ok := new(big.Int).SetString(strings.TrimSpace(stored.Ratio), 10)
	if !ok {
		return nil, fmt.Errorf("storage: invalid stored ratio %q", stored.Ratio)
	}
	if !ethcommon.IsHexAddress(stored.Admin) {
		return nil, fmt.Errorf("storage: invalid stored admin %q", stored.Admin)
	}
	cfg := &exchange.Config{
		SourceToken:      stored.SourceToken,
		TargetToken:      stored.TargetToken,
		Ratio:            ratio,
		WithdrawDeadline: stored.WithdrawDeadline,
	}
	copy(cfg.Admin[:], ethcommon.HexToAddress(stored.Admin).Bytes())
	return cfg, nil
}

// PutExchangeConfig persists the exchange configuration.
func (s *Store) PutExchangeConfig(cfg *exchange.Config) error {
	if cfg == nil {
		return fmt.Errorf("storage: nil exchange config")
	}
	ratio := "0"
	if cfg.Ratio != nil {
		ratio = cfg.Ratio.String()
	}
	stored := &storedExchangeConfig{
		SourceToken:      cfg.SourceToken,
		TargetToken:      cfg.TargetToken,
		Ratio:            ratio,
		WithdrawDeadline: cfg.WithdrawDeadline,
		Admin:            ethcommon.BytesToAddress(cfg.Admin[:]).Hex(),
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("storage: encode exchange config: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExchange).Put(keyExchangeConfig, raw)
	})
}

// SaveToken persists a ledger snapshot keyed by symbol.
func (s *Store) SaveToken(snap *token.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("storage: nil token snapshot")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("storage: encode token %s: %w", snap.Symbol, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLedger).Put([]byte(snap.Symbol), raw)
	})
}

// Tokens loads every persisted ledger snapshot.
func (s *Store) Tokens() ([]*token.Snapshot, error) {
	var snaps []*token.Snapshot
	if err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLedger).ForEach(func(_, value []byte) error {
			snap := &token.Snapshot{}
			if err := json.Unmarshal(value, snap); err != nil {
				return fmt.Errorf("storage: decode token snapshot: %w", err)
			}
			snaps = append(snaps, snap)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return snaps, nil
}

// AppendEvent records an emitted event at the end of the log.
func (s *Store) AppendEvent(evt *types.Event) error {
	if evt == nil {
		return fmt.Errorf("storage: nil event")
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("storage: encode event: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, raw)
	})
}

// Events returns up to limit events in append order; a non-positive limit
// returns the whole log.
func (s *Store) Events(limit int) ([]*types.Event, error) {
	var out []*types.Event
	if err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketEvents).Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			evt := &types.Event{}
			if err := json.Unmarshal(value, evt); err != nil {
				return fmt.Errorf("storage: decode event: %w", err)
			}
			out = append(out, evt)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}
