package docstore

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store is a tree of JSON documents addressed by slash-separated paths,
// persisted in SQLite. Every write is journalled so other processes sharing
// the file see changes through the watcher.
type Store struct {
	db       *sql.DB
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	lastSeq int64
	cancel  func()
	done    chan struct{}
	poke    chan struct{}
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string, b *bus.Bus, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if b == nil {
		b = bus.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:       db,
		bus:      b,
		logger:   logger,
		interval: 500 * time.Millisecond,
		poke:     make(chan struct{}, 1),
	}, nil
}

// SetWatchInterval changes how often the change journal is polled.
// Must be called before Start.
func (s *Store) SetWatchInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Close stops the watcher and closes the database.
func (s *Store) Close() error {
	s.Stop()
	return s.db.Close()
}
