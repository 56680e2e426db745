package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"plantdoctor/internal/dto"
	"plantdoctor/internal/logger"
)

// SnapshotService buffers annotated result frames and writes them to disk in batches.
type SnapshotService struct {
	dir         string
	snapshots   []dto.BufferedSnapshot
	bufferLimit int
	logger      *logger.Logger
	mu          sync.Mutex
}

func NewSnapshotService(dir string, bufferLimit int, log *logger.Logger) *SnapshotService {
	if bufferLimit <= 0 {
		bufferLimit = 1
	}
	return &SnapshotService{
		dir:         dir,
		bufferLimit: bufferLimit,
		snapshots:   make([]dto.BufferedSnapshot, 0, bufferLimit),
		logger:      log,
	}
}

// Run flushes on every tick and once more when ctx is cancelled.
func (s *SnapshotService) Run(ctx context.Context, flushInterval time.Duration) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// AddSnapshot queues a JPEG and returns the path it will be written to.
// A full buffer is flushed first so no snapshot is dropped.
func (s *SnapshotService) AddSnapshot(data []byte, sessionID, label string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) >= s.bufferLimit {
		s.flushLocked()
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05.000")
	filename := fmt.Sprintf("%s_%s_%s.jpg", timestamp, shortID(sessionID), sanitize(label))
	snapshot := dto.BufferedSnapshot{
		Timestamp: timestamp,
		SessionID: sessionID,
		Label:     label,
		Path:      filepath.Join(s.dir, filename),
		Data:      data,
	}

	s.snapshots = append(s.snapshots, snapshot)
	s.logger.Debug("Snapshot buffer size: %d/%d", len(s.snapshots), s.bufferLimit)
	return snapshot.Path
}

// Pending returns the number of buffered snapshots.
func (s *SnapshotService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// Flush writes all buffered snapshots and returns how many were written.
func (s *SnapshotService) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *SnapshotService) flushLocked() int {
	if len(s.snapshots) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("Error creating snapshot directory: %v", err)
		return 0
	}

	written := 0
	for _, snapshot := range s.snapshots {
		if err := os.WriteFile(snapshot.Path, snapshot.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", snapshot.Path, err)
			continue
		}
		written++
	}

	s.logger.Info("Flushed %d snapshots to disk", written)
	s.snapshots = s.snapshots[:0]
	return written
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "nosession"
	}
	return id
}

// sanitize keeps labels like "Tomato___Early_blight" usable as file name parts.
func sanitize(label string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, label)
	if clean == "" {
		return "unknown"
	}
	return clean
}
