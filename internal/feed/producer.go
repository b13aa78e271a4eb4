package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fjordchat/fjord/internal/event"
	"github.com/fjordchat/fjord/internal/logging"
	"github.com/fjordchat/fjord/internal/store"
)

// Producer is the reference event feed producer. It serves room snapshots
// and pagination from the sqlite backlog, pushes updates onto per-room
// queues, and coalesces requests per room: a new request supersedes the
// pending one for the same room instead of queuing behind it.
type Producer struct {
	repo     *store.TimelineRepository
	pageSize int
	log      zerolog.Logger

	mu      sync.Mutex
	rooms   map[event.RoomID]*roomFeed
	pending map[event.RoomID]Request
	order   []event.RoomID
	wake    chan struct{}
}

// roomFeed is the producer-side view of one room's loaded backlog.
type roomFeed struct {
	queue    *Queue
	events   []*event.Event
	items    event.Snapshot
	firstSeq int64
	hasOlder bool
	loaded   bool
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithProducerPageSize overrides the page size used for loads.
func WithProducerPageSize(n int) ProducerOption {
	return func(p *Producer) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// NewProducer creates a producer over the given repository.
func NewProducer(repo *store.TimelineRepository, opts ...ProducerOption) *Producer {
	p := &Producer{
		repo:     repo,
		pageSize: 50,
		log:      logging.Component("feed"),
		rooms:    make(map[event.RoomID]*roomFeed),
		pending:  make(map[event.RoomID]Request),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Updates returns the room's update queue, creating it on first use.
func (p *Producer) Updates(roomID event.RoomID) *Queue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room(roomID).queue
}

// room returns the room feed. Caller holds p.mu.
func (p *Producer) room(roomID event.RoomID) *roomFeed {
	rf, ok := p.rooms[roomID]
	if !ok {
		rf = &roomFeed{queue: NewQueue()}
		p.rooms[roomID] = rf
	}
	return rf
}

// Send accepts a request from the consumer. Never blocks; a request for a
// room that already has one pending replaces it.
func (p *Producer) Send(req Request) {
	p.mu.Lock()
	roomID := req.Room()
	if _, exists := p.pending[roomID]; !exists {
		p.order = append(p.order, roomID)
	}
	p.pending[roomID] = req
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run services requests until the context is cancelled. Intended to run on
// its own goroutine, independent of the consumer thread.
func (p *Producer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}
		for {
			req, ok := p.nextRequest()
			if !ok {
				break
			}
			p.serve(ctx, req)
		}
	}
}

func (p *Producer) nextRequest() (Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.order) > 0 {
		roomID := p.order[0]
		p.order = p.order[1:]
		if req, ok := p.pending[roomID]; ok {
			delete(p.pending, roomID)
			return req, true
		}
	}
	return nil, false
}

func (p *Producer) serve(ctx context.Context, req Request) {
	switch r := req.(type) {
	case Paginate:
		p.servePaginate(ctx, r)
	case PaginateUntilEvent:
		p.serveSearch(ctx, r)
	case RefreshUnread:
		p.serveUnread(ctx, r)
	default:
		p.log.Error().Msgf("unknown request type %T", req)
	}
}

// Bootstrap loads the newest page of a room and emits FirstLoad.
func (p *Producer) Bootstrap(ctx context.Context, roomID event.RoomID) error {
	page, err := p.repo.Latest(ctx, roomID, p.pageSize)
	if err != nil {
		return err
	}
	p.mu.Lock()
	rf := p.room(roomID)
	rf.events = page.Events
	rf.firstSeq = page.FirstSeq
	rf.hasOlder = page.HasOlder
	rf.loaded = true
	rf.items = buildSnapshot(rf.events)
	items := rf.items
	queue := rf.queue
	p.mu.Unlock()

	queue.Push(FirstLoad{Items: items})
	return nil
}

// Publish appends a live event to the room and emits an appending Replace.
func (p *Producer) Publish(ctx context.Context, roomID event.RoomID, ev *event.Event) error {
	if _, err := p.repo.Append(ctx, roomID, ev); err != nil {
		return err
	}
	p.mu.Lock()
	rf := p.room(roomID)
	if !rf.loaded {
		p.mu.Unlock()
		return nil
	}
	oldLen := len(rf.items)
	rf.events = append(rf.events, ev)
	rf.items = buildSnapshot(rf.events)
	items := rf.items
	queue := rf.queue
	p.mu.Unlock()

	changed := make([]int, 0, len(items)-oldLen)
	for i := oldLen; i < len(items); i++ {
		changed = append(changed, i)
	}
	queue.Push(Replace{Items: items, ChangedIndices: changed, IsAppend: true})
	return nil
}

func (p *Producer) servePaginate(ctx context.Context, req Paginate) {
	if req.Direction != DirectionBackward {
		p.log.Warn().Str("room", string(req.RoomID)).Msg("ignoring forward pagination request")
		return
	}
	queue := p.Updates(req.RoomID)
	queue.Push(PaginationRunning{Direction: DirectionBackward})

	hasOlder, err := p.prependPage(ctx, req.RoomID, req.Count)
	if err != nil {
		queue.Push(PaginationError{Direction: DirectionBackward, Cause: err})
		return
	}
	queue.Push(PaginationIdle{Direction: DirectionBackward, FullyPaginated: !hasOlder})
}

// prependPage loads one older page, commits the grown snapshot and emits a
// clear-cache Replace. Returns whether even older history remains.
func (p *Producer) prependPage(ctx context.Context, roomID event.RoomID, count int) (bool, error) {
	p.mu.Lock()
	rf := p.room(roomID)
	if !rf.loaded {
		p.mu.Unlock()
		return false, errors.New("room not bootstrapped")
	}
	firstSeq := rf.firstSeq
	p.mu.Unlock()

	if count <= 0 {
		count = p.pageSize
	}
	page, err := p.repo.PageBefore(ctx, roomID, firstSeq, count)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	if len(page.Events) > 0 {
		rf.events = append(append([]*event.Event(nil), page.Events...), rf.events...)
		rf.firstSeq = page.FirstSeq
	}
	rf.hasOlder = page.HasOlder
	rf.items = buildSnapshot(rf.events)
	items := rf.items
	queue := rf.queue
	hasOlder := rf.hasOlder
	p.mu.Unlock()

	queue.Push(Replace{Items: items, ClearCache: true})
	return hasOlder, nil
}

// serveSearch keeps loading older pages until the target event is locally
// known, then resolves the standing search with its snapshot index.
func (p *Producer) serveSearch(ctx context.Context, req PaginateUntilEvent) {
	queue := p.Updates(req.RoomID)

	if _, err := p.repo.FindEventSeq(ctx, req.RoomID, req.TargetEventID); err != nil {
		// Unknown event: resolve with an invalid index so the consumer
		// surfaces its "could not locate message" notice.
		queue.Push(TargetEventFound{TargetEventID: req.TargetEventID, Index: -1})
		return
	}

	queue.Push(PaginationRunning{Direction: DirectionBackward})
	for {
		if ctx.Err() != nil {
			return
		}
		p.mu.Lock()
		rf := p.room(req.RoomID)
		idx := rf.items.FindEventID(req.TargetEventID)
		hasOlder := rf.hasOlder
		p.mu.Unlock()

		if idx >= 0 {
			queue.Push(PaginationIdle{Direction: DirectionBackward, FullyPaginated: !hasOlder})
			queue.Push(TargetEventFound{TargetEventID: req.TargetEventID, Index: idx})
			return
		}
		if !hasOlder {
			queue.Push(PaginationIdle{Direction: DirectionBackward, FullyPaginated: true})
			queue.Push(TargetEventFound{TargetEventID: req.TargetEventID, Index: -1})
			return
		}
		if _, err := p.prependPage(ctx, req.RoomID, p.pageSize); err != nil {
			queue.Push(PaginationError{Direction: DirectionBackward, Cause: err})
			return
		}
	}
}

func (p *Producer) serveUnread(ctx context.Context, req RefreshUnread) {
	count, err := p.repo.UnreadCount(ctx, req.RoomID)
	if err != nil {
		p.log.Warn().Str("room", string(req.RoomID)).Err(err).Msg("unread count refresh failed")
		return
	}
	p.Updates(req.RoomID).Push(UnreadCount{Value: count})
}

// buildSnapshot renders the event list into timeline items, inserting a
// date divider whenever the calendar day changes.
func buildSnapshot(events []*event.Event) event.Snapshot {
	items := make(event.Snapshot, 0, len(events)+8)
	var lastDay string
	for _, ev := range events {
		day := ev.Timestamp.UTC().Format("2006-01-02")
		if day != lastDay {
			items = append(items, event.NewDateDivider(ev.Timestamp))
			lastDay = day
		}
		items = append(items, event.NewEventItem(ev))
	}
	return items
}
