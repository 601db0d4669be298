package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"go.uber.org/zap"
)

// journalRetention bounds how long change rows are kept after delivery.
const journalRetention = 10 * time.Minute

// Start begins polling the change journal. Changes written by this handle or
// any other process sharing the file are published as bus.DocChanged events
// whose payload is the changed path.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM changes`).Scan(&seq); err != nil {
		return fmt.Errorf("read journal head: %w", err)
	}
	s.lastSeq = seq

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.watch(ctx, s.done)
	return nil
}

// Stop halts the watcher. Safe to call when it was never started.
func (s *Store) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Store) watch(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.poke:
		}
		if err := s.drain(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("journal poll failed", zap.Error(err))
		}
	}
}

func (s *Store) drain(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, path FROM changes WHERE seq > ? ORDER BY seq`, s.lastSeq)
	if err != nil {
		return err
	}
	var paths []string
	for rows.Next() {
		var seq int64
		var p string
		if err := rows.Scan(&seq, &p); err != nil {
			_ = rows.Close()
			return err
		}
		s.lastSeq = seq
		paths = append(paths, p)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, p := range paths {
		s.bus.Emit(bus.DocChanged, p)
	}

	cutoff := time.Now().Add(-journalRetention).UnixMilli()
	_, err = s.db.ExecContext(ctx, `DELETE FROM changes WHERE changed_at < ?`, cutoff)
	return err
}

func (s *Store) signal() {
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

// Subscribe delivers the current snapshot of path followed by a fresh
// snapshot after every change that overlaps it. Only the latest undelivered
// snapshot is kept. Updates arrive while the watcher runs. The returned
// function cancels the subscription and closes the channel.
func (s *Store) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, nil, err
	}
	events, unsub := s.bus.Subscribe(bus.DocChanged, 64)

	first, err := s.Get(ctx, path)
	if err != nil {
		unsub()
		return nil, nil, err
	}

	out := make(chan Snapshot, 1)
	out <- first
	stop := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		defer close(out)
		for {
			select {
			case <-stop:
				return
			case evt := <-events:
				changed, _ := evt.Payload.(string)
				if !overlaps(path, changed) {
					continue
				}
				snap, err := s.Get(context.Background(), path)
				if err != nil {
					s.logger.Warn("subscription read failed", zap.String("path", path), zap.Error(err))
					continue
				}
				select {
				case out <- snap:
				default:
					select {
					case <-out:
					default:
					}
					out <- snap
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			unsub()
			close(stop)
			<-finished
		})
	}, nil
}
