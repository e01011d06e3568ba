package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nullpass/nullpass/internal/models"
)

const batchSize = 50

// PGHandler is an slog.Handler that batches ERROR+ logs to PostgreSQL.
type PGHandler struct {
	shared *pgBuffer
	attrs  []slog.Attr
}

type pgBuffer struct {
	write  func([]models.SystemLog) error
	mu     sync.Mutex
	buffer []models.SystemLog
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewPGHandler(db *gorm.DB) *PGHandler {
	return newPGHandler(func(batch []models.SystemLog) error {
		return db.CreateInBatches(batch, batchSize).Error
	}, 5*time.Second)
}

func newPGHandler(write func([]models.SystemLog) error, interval time.Duration) *PGHandler {
	b := &pgBuffer{
		write:  write,
		buffer: make([]models.SystemLog, 0, batchSize),
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	b.wg.Add(1)
	go b.flushLoop()
	return &PGHandler{shared: b}
}

func (b *pgBuffer) flushLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ticker.C:
			b.flush()
		case <-b.done:
			b.flush()
			return
		}
	}
}

func (b *pgBuffer) flush() {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buffer
	b.buffer = make([]models.SystemLog, 0, batchSize)
	b.mu.Unlock()

	if err := b.write(batch); err != nil {
		// Straight to stderr so the failure is not buffered again.
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

// Stop flushes what is buffered and waits for the flusher to exit.
func (h *PGHandler) Stop() {
	h.shared.ticker.Stop()
	close(h.shared.done)
	h.shared.wg.Wait()
}

// Enabled only handles ERROR and above.
func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]any)
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "service":
			entry.Service = a.Value.String()
		case "request_id":
			entry.RequestID = a.Value.String()
		case "user_id":
			s := a.Value.String()
			entry.UserID = &s
		case "action":
			entry.Action = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		case "ip":
			entry.IP = a.Value.String()
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	b := h.shared
	b.mu.Lock()
	b.buffer = append(b.buffer, entry)
	needFlush := len(b.buffer) >= batchSize
	b.mu.Unlock()

	if needFlush {
		go b.flush()
	}
	return nil
}

func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PGHandler{shared: h.shared, attrs: merged}
}

func (h *PGHandler) WithGroup(name string) slog.Handler {
	return h
}
