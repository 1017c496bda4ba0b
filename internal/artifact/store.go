// Package artifact manages rendered video artifacts: durable storage keyed by
// opaque IDs, read leases so an in-flight download blocks eviction, and a TTL
// sweeper for expired outputs.
package artifact

import (
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"motiond/internal/domain"
	"motiond/internal/infra"
	"motiond/internal/storage"
)

// Artifact is the public record for one stored video.
type Artifact struct {
	ID        string
	JobID     string
	Ext       string
	Size      int64
	CreatedAt time.Time
}

type entry struct {
	Artifact
	key     string
	leases  int
	evicted bool // eviction requested while leased; delete on last release
}

// Store tracks artifacts and their lease counts in memory; bytes live in the
// backing FileStore. All methods are safe for concurrent use.
type Store struct {
	files  *storage.FileStore
	ttl    time.Duration
	logger infra.Logger
	clock  func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewStore builds a Store over files. ttl <= 0 disables expiry.
func NewStore(files *storage.FileStore, ttl time.Duration, logger infra.Logger) *Store {
	return &Store{
		files:   files,
		ttl:     ttl,
		logger:  logger,
		clock:   time.Now,
		entries: make(map[string]*entry),
	}
}

// Put stores a finished render and returns its artifact ID. The artifact only
// becomes visible once the bytes are fully durable.
func (s *Store) Put(ctx context.Context, jobID string, ext string, data []byte) (*Artifact, error) {
	id := uuid.NewString()
	key := path.Join("videos", jobID, id+ext)

	cleanKey, err := s.files.Write(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("artifact: store video: %w", err)
	}

	e := &entry{
		Artifact: Artifact{
			ID:        id,
			JobID:     jobID,
			Ext:       ext,
			Size:      int64(len(data)),
			CreatedAt: s.clock(),
		},
		key: cleanKey,
	}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return &e.Artifact, nil
}

// Lease is an open read on an artifact. Close releases it; a leased artifact
// survives eviction and TTL sweeps until the last lease closes.
type Lease struct {
	Artifact Artifact
	Reader   io.ReadSeekCloser

	store *Store
	once  sync.Once
}

// Close releases the lease and finishes any eviction deferred by it.
func (l *Lease) Close() error {
	err := l.Reader.Close()
	l.once.Do(func() {
		l.store.release(l.Artifact.ID)
	})
	return err
}

// Open acquires a read lease on the artifact.
func (s *Store) Open(ctx context.Context, id string) (*Lease, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.evicted {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: artifact %s", domain.ErrNotFound, id)
	}
	e.leases++
	key := e.key
	art := e.Artifact
	s.mu.Unlock()

	f, size, err := s.files.Open(ctx, key)
	if err != nil {
		s.release(id)
		return nil, fmt.Errorf("artifact: open %s: %w", id, err)
	}
	art.Size = size
	return &Lease{Artifact: art, Reader: f, store: s}, nil
}

func (s *Store) release(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.leases--
	deleteNow := e.evicted && e.leases <= 0
	key := e.key
	if deleteNow {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if deleteNow {
		s.removeBytes(key)
	}
}

// Evict removes the artifact. If readers hold leases the bytes stay on disk
// until the last lease closes, but no new lease can be taken.
func (s *Store) Evict(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if e.leases > 0 {
		e.evicted = true
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	key := e.key
	s.mu.Unlock()

	s.removeBytes(key)
}

// EvictJob removes every artifact belonging to a job.
func (s *Store) EvictJob(jobID string) {
	s.mu.Lock()
	var ids []string
	for id, e := range s.entries {
		if e.JobID == jobID {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Evict(id)
	}
}

func (s *Store) removeBytes(key string) {
	if err := s.files.Remove(context.Background(), key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("artifact: remove failed")
	}
}

// sweep evicts artifacts older than the TTL. Leased artifacts are marked and
// collected on release instead.
func (s *Store) sweep() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.clock().Add(-s.ttl)

	s.mu.Lock()
	var expired []string
	for id, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.Evict(id)
	}
	if len(expired) > 0 {
		s.logger.Info().Int("count", len(expired)).Msg("artifact: swept expired artifacts")
	}
}

// RunSweeper periodically sweeps expired artifacts until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}
