package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fjordchat/fjord/internal/event"
)

// Repository errors.
var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("invalid event")
)

// TimelineRepository handles room event persistence.
type TimelineRepository struct {
	db *DB
}

// NewTimelineRepository creates a new TimelineRepository.
func NewTimelineRepository(db *DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// Page is a slice of a room's backlog in ascending sequence order.
type Page struct {
	Events []*event.Event

	// FirstSeq is the sequence number of the first returned event.
	FirstSeq int64

	// HasOlder reports whether history continues before FirstSeq.
	HasOlder bool
}

// Append adds an event to the end of a room's backlog and returns its
// assigned sequence number. A missing LocalID is generated; a zero
// timestamp defaults to now.
func (r *TimelineRepository) Append(ctx context.Context, roomID event.RoomID, ev *event.Event) (int64, error) {
	if ev == nil || ev.Sender == "" || ev.Content.Kind == "" {
		return 0, ErrInvalidEvent
	}
	if ev.LocalID == "" {
		ev.LocalID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	} else {
		ev.Timestamp = ev.Timestamp.UTC()
	}

	var seq int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO room_events (
			room_id, seq, local_id, event_id, sender, sender_name,
			timestamp, kind, body, membership, state_key, value
		) VALUES (
			?, COALESCE((SELECT MAX(seq) + 1 FROM room_events WHERE room_id = ?), 0),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
		RETURNING seq
	`,
		string(roomID), string(roomID),
		ev.LocalID,
		string(ev.EventID),
		string(ev.Sender),
		ev.SenderName,
		ev.Timestamp.Format(time.RFC3339Nano),
		string(ev.Content.Kind),
		ev.Content.Body,
		string(ev.Content.Membership),
		ev.Content.StateKey,
		ev.Content.Value,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return seq, nil
}

// Latest returns the newest `limit` events of a room in ascending order.
func (r *TimelineRepository) Latest(ctx context.Context, roomID event.RoomID, limit int) (*Page, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, local_id, event_id, sender, sender_name, timestamp,
		       kind, body, membership, state_key, value
		FROM room_events
		WHERE room_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, string(roomID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest events: %w", err)
	}
	defer rows.Close()

	page, err := r.scanDescending(rows)
	if err != nil {
		return nil, err
	}
	return r.fillHasOlder(ctx, roomID, page)
}

// PageBefore returns up to `limit` events with seq < beforeSeq, ascending.
func (r *TimelineRepository) PageBefore(ctx context.Context, roomID event.RoomID, beforeSeq int64, limit int) (*Page, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, local_id, event_id, sender, sender_name, timestamp,
		       kind, body, membership, state_key, value
		FROM room_events
		WHERE room_id = ? AND seq < ?
		ORDER BY seq DESC
		LIMIT ?
	`, string(roomID), beforeSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query older events: %w", err)
	}
	defer rows.Close()

	page, err := r.scanDescending(rows)
	if err != nil {
		return nil, err
	}
	return r.fillHasOlder(ctx, roomID, page)
}

// FindEventSeq returns the sequence number of the event with the given
// confirmed event id, or ErrEventNotFound.
func (r *TimelineRepository) FindEventSeq(ctx context.Context, roomID event.RoomID, id event.EventID) (int64, error) {
	if id == "" {
		return 0, ErrEventNotFound
	}
	var seq int64
	err := r.db.QueryRowContext(ctx, `
		SELECT seq FROM room_events WHERE room_id = ? AND event_id = ?
	`, string(roomID), string(id)).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrEventNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up event: %w", err)
	}
	return seq, nil
}

// UnreadCount counts events newer than the room's read marker.
func (r *TimelineRepository) UnreadCount(ctx context.Context, roomID event.RoomID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM room_events e
		WHERE e.room_id = ?
		  AND e.timestamp > COALESCE(
			(SELECT timestamp FROM read_markers WHERE room_id = ?), '')
	`, string(roomID), string(roomID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread events: %w", err)
	}
	return count, nil
}

func (r *TimelineRepository) fillHasOlder(ctx context.Context, roomID event.RoomID, page *Page) (*Page, error) {
	if len(page.Events) == 0 {
		page.HasOlder = false
		return page, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM room_events WHERE room_id = ? AND seq < ?
	`, string(roomID), page.FirstSeq).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("failed to probe older events: %w", err)
	}
	page.HasOlder = n > 0
	return page, nil
}

// scanDescending consumes rows ordered by seq DESC and returns them ascending.
func (r *TimelineRepository) scanDescending(rows *sql.Rows) (*Page, error) {
	var events []*event.Event
	var firstSeq int64
	for rows.Next() {
		var (
			seq        int64
			localID    string
			eventID    sql.NullString
			sender     string
			senderName sql.NullString
			ts         string
			kind       string
			body       sql.NullString
			membership sql.NullString
			stateKey   sql.NullString
			value      sql.NullString
		)
		if err := rows.Scan(&seq, &localID, &eventID, &sender, &senderName, &ts,
			&kind, &body, &membership, &stateKey, &value); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
		}
		events = append(events, &event.Event{
			LocalID:    localID,
			EventID:    event.EventID(eventID.String),
			Sender:     event.UserID(sender),
			SenderName: senderName.String,
			Timestamp:  parsed,
			Content: event.Content{
				Kind:       event.ContentKind(kind),
				Body:       body.String,
				Membership: event.Membership(membership.String),
				StateKey:   stateKey.String,
				Value:      value.String,
			},
		})
		firstSeq = seq
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	// Rows arrived newest-first; reverse into timeline order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return &Page{Events: events, FirstSeq: firstSeq}, nil
}
