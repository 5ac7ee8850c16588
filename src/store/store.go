package store

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/btree"
	"github.com/rs/zerolog"

	"orderbook-arena/src/arena"
	"orderbook-arena/src/logger"
	"orderbook-arena/src/market"
)

var (
	ErrMarketExists = errors.New("store: market already exists")
	ErrInvalidName  = errors.New("store: market name must be 1-64 characters of [A-Za-z0-9_-]")
	ErrClosed       = errors.New("store: closed")
)

type MarketNotFoundError struct {
	Name string
}

func (e *MarketNotFoundError) Error() string {
	return "market not found: " + e.Name
}

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

const keyPrefix = "market/"

func keyFor(name string) []byte {
	return []byte(keyPrefix + name)
}

// account is one market account held in 8-byte aligned memory. deleted is
// set under mu once the account has been removed from the store.
type account struct {
	mu      sync.RWMutex
	buf     []byte
	deleted bool
}

// FailureRecorder counts accounts that could not be dispatched to a market
// shape.
type FailureRecorder interface {
	DispatchFailed(reason string)
}

// Store keeps market accounts in memory and mirrors every committed write to
// pebble so the accounts survive restarts.
type Store struct {
	db       *pebble.DB
	log      zerolog.Logger
	failures FailureRecorder

	mu       sync.RWMutex
	accounts map[string]*account
	names    *btree.BTreeG[string]
	closed   bool
}

type Options struct {
	// Dir is the pebble directory. Empty selects an in-memory filesystem.
	Dir string
	// Failures, when set, is told about malformed or unsupported accounts.
	Failures FailureRecorder
}

// Open opens the database and loads every stored account. Accounts whose
// buffers fail validation are skipped and reported in the log.
func Open(opts Options) (*Store, error) {
	pebbleOpts := &pebble.Options{}
	if opts.Dir == "" {
		pebbleOpts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(opts.Dir, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", opts.Dir, err)
	}

	s := &Store{
		db:       db,
		log:      logger.Component("store"),
		failures: opts.Failures,
		accounts: make(map[string]*account),
		names:    btree.NewOrderedG[string](16),
	}
	if err := s.loadAll(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info().
		Str("dir", opts.Dir).
		Int("markets", len(s.accounts)).
		Msg("Account store opened")
	return s, nil
}

func (s *Store) loadAll() error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "\xff"),
	})
	if err != nil {
		return fmt.Errorf("store: iterate accounts: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		name := string(iter.Key()[len(keyPrefix):])
		value := iter.Value()

		buf := arena.AlignedBuffer(len(value))
		copy(buf, value)
		if err := checkAccount(buf); err != nil {
			s.recordFailure(err)
			s.log.Error().
				Err(err).
				Str("market", name).
				Msg("Skipping stored account that failed validation")
			continue
		}
		s.accounts[name] = &account{buf: buf}
		s.names.ReplaceOrInsert(name)
	}
	return iter.Error()
}

// recordFailure reports dispatch errors to the failure recorder.
func (s *Store) recordFailure(err error) {
	if s.failures == nil {
		return
	}
	switch {
	case errors.Is(err, market.ErrUnsupportedShape):
		s.failures.DispatchFailed("unsupported_shape")
	case errors.Is(err, market.ErrMalformedBuffer):
		s.failures.DispatchFailed("malformed_buffer")
	}
}

func checkAccount(buf []byte) error {
	_, m, err := market.LoadAccount(buf)
	if err != nil {
		return err
	}
	return m.Validate()
}

// Create allocates and initialises a new market account.
func (s *Store) Create(name string, header market.MarketHeader, baseLotsPerBaseUnit, quoteLotsPerTick, takerFeeBps uint64) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	size, ok := market.AccountSize(header.MarketParams)
	if !ok {
		s.recordFailure(market.ErrUnsupportedShape)
		return market.ErrUnsupportedShape
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, exists := s.accounts[name]; exists {
		return ErrMarketExists
	}

	buf := arena.AlignedBuffer(size)
	m, err := market.InitAccount(buf, header, baseLotsPerBaseUnit, quoteLotsPerTick)
	if err != nil {
		s.recordFailure(err)
		return err
	}
	m.SetTakerFeeBps(takerFeeBps)
	if err := s.db.Set(keyFor(name), buf, pebble.Sync); err != nil {
		return fmt.Errorf("store: persist %s: %w", name, err)
	}
	s.accounts[name] = &account{buf: buf}
	s.names.ReplaceOrInsert(name)

	s.log.Info().
		Str("market", name).
		Uint64("bids_size", header.MarketParams.BidsSize).
		Uint64("asks_size", header.MarketParams.AsksSize).
		Uint64("num_seats", header.MarketParams.NumSeats).
		Uint64("taker_fee_bps", takerFeeBps).
		Int("bytes", size).
		Msg("Market account created")
	return nil
}

func (s *Store) lookup(name string) (*account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	acct, ok := s.accounts[name]
	if !ok {
		return nil, &MarketNotFoundError{Name: name}
	}
	return acct, nil
}

// View runs fn with a read-only handle. The handle must not escape fn.
func (s *Store) View(name string, fn func(h market.MarketHeader, m market.Market) error) error {
	acct, err := s.lookup(name)
	if err != nil {
		return err
	}
	acct.mu.RLock()
	defer acct.mu.RUnlock()
	if acct.deleted {
		return &MarketNotFoundError{Name: name}
	}

	h, m, err := market.LoadAccount(acct.buf)
	if err != nil {
		s.recordFailure(err)
		return err
	}
	return fn(h, m)
}

// Update runs fn with a mutable handle. If fn fails the account is restored
// to its state before the call, otherwise the new state is persisted.
func (s *Store) Update(name string, fn func(h *market.MarketHeader, m market.MutableMarket) error) error {
	acct, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.update(name, acct, fn)
}

// update holds the account lock for the whole write. An account deleted
// between lookup and lock is reported as not found and never persisted.
func (s *Store) update(name string, acct *account, fn func(h *market.MarketHeader, m market.MutableMarket) error) error {
	acct.mu.Lock()
	defer acct.mu.Unlock()
	if acct.deleted {
		return &MarketNotFoundError{Name: name}
	}

	h, m, err := market.LoadAccountMut(acct.buf)
	if err != nil {
		s.recordFailure(err)
		return err
	}
	snapshot := bytes.Clone(acct.buf)
	if err := fn(h, m); err != nil {
		copy(acct.buf, snapshot)
		return err
	}
	if err := s.db.Set(keyFor(name), acct.buf, pebble.Sync); err != nil {
		copy(acct.buf, snapshot)
		return fmt.Errorf("store: persist %s: %w", name, err)
	}
	return nil
}

// List returns market names in ascending order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, s.names.Len())
	s.names.Ascend(func(name string) bool {
		names = append(names, name)
		return true
	})
	return names
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	acct, ok := s.accounts[name]
	if !ok {
		return &MarketNotFoundError{Name: name}
	}
	// edge case: wait for in-flight handles on this account to finish
	acct.mu.Lock()
	defer acct.mu.Unlock()

	if err := s.db.Delete(keyFor(name), pebble.Sync); err != nil {
		return fmt.Errorf("store: delete %s: %w", name, err)
	}
	acct.deleted = true
	delete(s.accounts, name)
	s.names.Delete(name)

	s.log.Info().Str("market", name).Msg("Market account deleted")
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
