package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjordchat/fjord/internal/event"
)

// ErrNoReadMarker is returned when a room has no stored read marker.
var ErrNoReadMarker = errors.New("no read marker")

// ReadMarker records how far a room has been read.
type ReadMarker struct {
	EventID   event.EventID
	Timestamp time.Time

	// FullyRead is set once the user scrolled past their previous marker.
	FullyRead bool
}

// ReceiptRepository persists read markers.
type ReceiptRepository struct {
	db *DB
}

// NewReceiptRepository creates a new ReceiptRepository.
func NewReceiptRepository(db *DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Save upserts the room's read marker. A later marker always wins; an older
// one is ignored.
func (r *ReceiptRepository) Save(ctx context.Context, roomID event.RoomID, marker ReadMarker) error {
	if marker.EventID == "" {
		return fmt.Errorf("read marker event id is required")
	}
	fully := 0
	if marker.FullyRead {
		fully = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO read_markers (room_id, event_id, timestamp, fully_read)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (room_id) DO UPDATE SET
			event_id = excluded.event_id,
			timestamp = excluded.timestamp,
			fully_read = MAX(read_markers.fully_read, excluded.fully_read)
		WHERE excluded.timestamp >= read_markers.timestamp
	`, string(roomID), string(marker.EventID), marker.Timestamp.UTC().Format(time.RFC3339Nano), fully)
	if err != nil {
		return fmt.Errorf("failed to save read marker: %w", err)
	}
	return nil
}

// Get returns the room's read marker, or ErrNoReadMarker.
func (r *ReceiptRepository) Get(ctx context.Context, roomID event.RoomID) (*ReadMarker, error) {
	var (
		eventID string
		ts      string
		fully   int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT event_id, timestamp, fully_read FROM read_markers WHERE room_id = ?
	`, string(roomID)).Scan(&eventID, &ts, &fully)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoReadMarker
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load read marker: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse read marker timestamp: %w", err)
	}
	return &ReadMarker{
		EventID:   event.EventID(eventID),
		Timestamp: parsed,
		FullyRead: fully != 0,
	}, nil
}
