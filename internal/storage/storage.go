package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/engine"
)

// Storage keys
const (
	keyOptions     = "options"
	keyStats       = "stats"
	prefixAnalysis = "pos/"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("storage: not found")

// EngineOptions are the UCI options restored at startup.
type EngineOptions struct {
	Hash         int       `json:"hash"`
	Threads      int       `json:"threads"`
	MoveOverhead int       `json:"move_overhead_ms"`
	EvalFile     string    `json:"eval_file"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Overhead returns the move overhead as a duration.
func (o *EngineOptions) Overhead() time.Duration {
	return time.Duration(o.MoveOverhead) * time.Millisecond
}

// Analysis is the deepest search result recorded for a position.
type Analysis struct {
	FEN       string    `json:"fen"`
	Move      string    `json:"move"`
	Score     int       `json:"score"`
	Depth     int       `json:"depth"`
	Nodes     uint64    `json:"nodes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchStats accumulates over every recorded search.
type SearchStats struct {
	Searches   int       `json:"searches"`
	Nodes      uint64    `json:"nodes"`
	LastSearch time.Time `json:"last_search"`
}

// Storage wraps BadgerDB for persistent storage
type Storage struct {
	db *badger.DB
}

// NewStorage opens the database in the platform data directory.
func NewStorage() (*Storage, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}
	return Open(dbDir)
}

// Open opens the database in dir. An empty dir keeps everything in memory.
func Open(dir string) (*Storage, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = badgerLogger{}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func analysisKey(hash uint64) []byte {
	k := make([]byte, len(prefixAnalysis)+8)
	copy(k, prefixAnalysis)
	binary.BigEndian.PutUint64(k[len(prefixAnalysis):], hash)
	return k
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// SaveOptions persists the engine options.
func (s *Storage) SaveOptions(opts *EngineOptions) error {
	opts.UpdatedAt = time.Now()
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(keyOptions), opts)
	})
}

// LoadOptions returns the saved engine options, or ErrNotFound.
func (s *Storage) LoadOptions() (*EngineOptions, error) {
	opts := &EngineOptions{}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(keyOptions), opts)
	})
	if err != nil {
		return nil, err
	}
	return opts, nil
}

// GetAnalysis returns the record for a position hash, or ErrNotFound.
func (s *Storage) GetAnalysis(hash uint64) (*Analysis, error) {
	a := &Analysis{}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, analysisKey(hash), a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// PutAnalysis stores a unless a deeper record exists, and counts the
// search in the stats either way. It reports whether a was stored.
func (s *Storage) PutAnalysis(hash uint64, a *Analysis) (bool, error) {
	stored := false
	err := s.db.Update(func(txn *badger.Txn) error {
		stats := &SearchStats{}
		if err := getJSON(txn, []byte(keyStats), stats); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		stats.Searches++
		stats.Nodes += a.Nodes
		stats.LastSearch = time.Now()
		if err := setJSON(txn, []byte(keyStats), stats); err != nil {
			return err
		}

		old := &Analysis{}
		err := getJSON(txn, analysisKey(hash), old)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err == nil && old.Depth > a.Depth {
			return nil
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = time.Now()
		}
		stored = true
		return setJSON(txn, analysisKey(hash), a)
	})
	return stored, err
}

// CountAnalyses returns the number of positions with a record.
func (s *Storage) CountAnalyses() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixAnalysis)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// LoadStats returns the search statistics, empty if none were recorded.
func (s *Storage) LoadStats() (*SearchStats, error) {
	stats := &SearchStats{}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(keyStats), stats)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return stats, nil
}

// Lookup returns the recorded move for pos when it is legal there.
func (s *Storage) Lookup(pos *board.Position) (board.Move, bool) {
	a, err := s.GetAnalysis(pos.Hash)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("analysis-lookup-failed")
		}
		return board.NoMove, false
	}
	m, err := pos.ParseMove(a.Move)
	if err != nil {
		return board.NoMove, false
	}
	return m, true
}

// Record saves a finished search of pos.
func (s *Storage) Record(pos *board.Position, res engine.Result) error {
	_, err := s.PutAnalysis(pos.Hash, &Analysis{
		FEN:   pos.ToFEN(),
		Move:  res.Move.String(),
		Score: res.Score,
		Depth: res.Depth,
		Nodes: res.Nodes,
	})
	if err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}

// badgerLogger routes badger's messages through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	log.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	log.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	log.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	log.Trace().Str("component", "badger").Msgf(format, args...)
}
