package feed

import (
	"context"
	"time"

	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/logging"
	"github.com/fjordchat/fjord/internal/store"
)

// StoreReceipts persists read-receipt signals into the receipt repository.
// Satisfies the engine's ReceiptSink contract; failures are logged, never
// surfaced, since receipts are best effort.
type StoreReceipts struct {
	repo *store.ReceiptRepository
}

// NewStoreReceipts creates a store-backed receipt sink.
func NewStoreReceipts(repo *store.ReceiptRepository) *StoreReceipts {
	return &StoreReceipts{repo: repo}
}

// ReadUpTo records the newest visible event as read.
func (s *StoreReceipts) ReadUpTo(roomID event.RoomID, eventID event.EventID, ts time.Time) {
	err := s.repo.Save(context.Background(), roomID, store.ReadMarker{
		EventID:   eventID,
		Timestamp: ts,
	})
	if err != nil {
		logging.Warn().Str("room", string(roomID)).Err(err).Msg("failed to save read marker")
	}
}

// FullyReadUpTo records the stronger fully-read marker.
func (s *StoreReceipts) FullyReadUpTo(roomID event.RoomID, eventID event.EventID, ts time.Time) {
	err := s.repo.Save(context.Background(), roomID, store.ReadMarker{
		EventID:   eventID,
		Timestamp: ts,
		FullyRead: true,
	})
	if err != nil {
		logging.Warn().Str("room", string(roomID)).Err(err).Msg("failed to save fully-read marker")
	}
}
