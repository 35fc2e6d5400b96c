package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/owasp-nest/nest-api/internal/debounce"
	"github.com/owasp-nest/nest-api/internal/dto"
	"github.com/owasp-nest/nest-api/internal/listing"
	"github.com/owasp-nest/nest-api/internal/observability"
	"github.com/owasp-nest/nest-api/internal/search"
)

const (
	listingSendBufferSize = 32
	listingPingInterval   = 30 * time.Second
	// DefaultSearchDebounce is how long a listing session waits for typing to settle.
	DefaultSearchDebounce = 750 * time.Millisecond
)

// Listing message types exchanged over a session.
const (
	ListingMessageSearch    = "search"
	ListingMessagePage      = "page"
	ListingMessageState     = "state"
	ListingMessageScrollTop = "scroll_top"
	ListingMessageError     = "error"
)

// ListingClients holds the search client of every listing index.
type ListingClients struct {
	Projects   search.Client[dto.ProjectCard]
	Chapters   search.Client[dto.ChapterCard]
	Committees search.Client[dto.CommitteeCard]
	Issues     search.Client[dto.IssueCard]
}

// ListingSessionOptions wraps metadata extracted during the websocket upgrade.
type ListingSessionOptions struct {
	Index         string
	CorrelationID string
	Context       context.Context
}

// ListingCommand is a message sent by the client of a listing session.
type ListingCommand struct {
	Type      string `json:"type"`
	Query     string `json:"query"`
	Page      int    `json:"page"`
	Immediate bool   `json:"immediate"`
}

// ListingEvent is a message pushed to the client of a listing session.
type ListingEvent struct {
	Type    string      `json:"type"`
	State   interface{} `json:"state,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ListingService serves listing pages statelessly and as live sessions.
type ListingService interface {
	Indexes() []string
	Page(ctx context.Context, index string, query dto.ListingQuery) (interface{}, error)
	ServeSession(conn *websocket.Conn, opts ListingSessionOptions)
}

type listingEndpoint interface {
	page(ctx context.Context, query dto.ListingQuery) (interface{}, error)
	serve(conn *websocket.Conn, opts ListingSessionOptions)
}

type listingService struct {
	endpoints map[string]listingEndpoint
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewListingService wires the listing pages. A nil client leaves its index unserved.
func NewListingService(clients ListingClients, debounceDelay time.Duration, validate *validator.Validate, logger zerolog.Logger) ListingService {
	svc := &listingService{
		endpoints: make(map[string]listingEndpoint),
		validator: validate,
		logger:    logger.With().Str("component", "listing_service").Logger(),
	}

	register(svc, "projects", "OWASP Projects", clients.Projects, debounceDelay)
	register(svc, "chapters", "OWASP Chapters", clients.Chapters, debounceDelay)
	register(svc, "committees", "OWASP Committees", clients.Committees, debounceDelay)
	register(svc, "issues", "Contribute to OWASP", clients.Issues, debounceDelay)

	return svc
}

func register[T any](svc *listingService, index, title string, client search.Client[T], delay time.Duration) {
	if client == nil {
		return
	}
	svc.endpoints[index] = &typedListing[T]{
		index:  index,
		title:  title,
		client: client,
		delay:  delay,
		logger: svc.logger,
	}
}

func (s *listingService) Indexes() []string {
	indexes := make([]string, 0, len(s.endpoints))
	for index := range s.endpoints {
		indexes = append(indexes, index)
	}
	sort.Strings(indexes)
	return indexes
}

func (s *listingService) Page(ctx context.Context, index string, query dto.ListingQuery) (interface{}, error) {
	endpoint, ok := s.endpoints[index]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndex, index)
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}
	return endpoint.page(ctx, query)
}

func (s *listingService) ServeSession(conn *websocket.Conn, opts ListingSessionOptions) {
	endpoint, ok := s.endpoints[opts.Index]
	if !ok {
		_ = conn.WriteJSON(ListingEvent{Type: ListingMessageError, Message: "unknown listing index"})
		_ = conn.Close()
		return
	}
	endpoint.serve(conn, opts)
}

type typedListing[T any] struct {
	index  string
	title  string
	client search.Client[T]
	delay  time.Duration
	logger zerolog.Logger
}

// page replays a page visit: mount with the query already entered, then move
// to the requested page clamped to the pages that exist.
func (l *typedListing[T]) page(ctx context.Context, query dto.ListingQuery) (interface{}, error) {
	controller := listing.NewController[T](l.client, l.logger, listing.Options[T]{})
	controller.InitializeQuery(ctx, l.index, l.title, query.Query)

	if query.Page > 1 {
		target := listing.ClampPage(query.Page, controller.Snapshot().TotalPages)
		if target != controller.Snapshot().Page {
			controller.ChangePage(ctx, target)
		}
	}

	return toListingResponse(controller.Snapshot()), nil
}

func toListingResponse[T any](state listing.State[T]) dto.ListingResponse[T] {
	return dto.ListingResponse[T]{
		Index:      state.Index,
		Title:      state.Title,
		Query:      state.Query,
		Page:       state.Page,
		TotalPages: state.TotalPages,
		IsLoaded:   state.IsLoaded,
		Items:      state.Items,
	}
}

type listingSession[T any] struct {
	owner      *typedListing[T]
	conn       *websocket.Conn
	controller *listing.Controller[T]
	debouncer  *debounce.Debouncer[string]
	send       chan ListingEvent
	closed     chan struct{}
	once       sync.Once
	mu         sync.Mutex
	done       bool
	ops        sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	logger     zerolog.Logger
}

func (l *typedListing[T]) serve(conn *websocket.Conn, opts ListingSessionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)

	session := &listingSession[T]{
		owner:  l,
		conn:   conn,
		send:   make(chan ListingEvent, listingSendBufferSize),
		closed: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		logger: l.logger.With().Str("index", l.index).Str("correlation_id", opts.CorrelationID).Logger(),
	}
	session.controller = listing.NewController[T](l.client, l.logger, listing.Options[T]{
		OnChange: func(state listing.State[T]) {
			session.emit(ListingEvent{Type: ListingMessageState, State: toListingResponse(state)})
		},
		OnScrollTop: func() {
			session.emit(ListingEvent{Type: ListingMessageScrollTop})
		},
	})
	session.debouncer = debounce.New(l.delay, func(query string) {
		session.run(func() { session.controller.Search(session.ctx, query) })
	})

	observability.ListingSessionsActive().Inc()
	session.logger.Debug().Msg("listing session opened")

	go session.writer()
	session.run(func() { session.controller.Initialize(session.ctx, l.index, l.title) })
	session.reader()
}

func (s *listingSession[T]) run(op func()) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.ops.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.ops.Done()
		op()
	}()
}

func (s *listingSession[T]) emit(event ListingEvent) {
	select {
	case s.send <- event:
	case <-s.closed:
	}
}

func (s *listingSession[T]) reader() {
	defer s.close()

	for {
		var command ListingCommand
		if err := s.conn.ReadJSON(&command); err != nil {
			s.logger.Debug().Err(err).Msg("listing read loop ended")
			return
		}

		switch command.Type {
		case ListingMessageSearch:
			s.debouncer.Call(command.Query)
			if command.Immediate {
				s.debouncer.Flush()
			}
		case ListingMessagePage:
			page := listing.ClampPage(command.Page, s.controller.Snapshot().TotalPages)
			s.run(func() { s.controller.ChangePage(s.ctx, page) })
		default:
			s.emit(ListingEvent{Type: ListingMessageError, Message: fmt.Sprintf("unsupported message type %q", command.Type)})
		}
	}
}

func (s *listingSession[T]) writer() {
	ticker := time.NewTicker(listingPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-s.send:
			if err := s.conn.WriteJSON(event); err != nil {
				s.logger.Debug().Err(err).Msg("listing write loop terminated")
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				s.logger.Debug().Err(err).Msg("listing ping failed")
				s.close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *listingSession[T]) close() {
	s.once.Do(func() {
		s.debouncer.Stop()
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		close(s.closed)
		s.cancel()
		s.ops.Wait()
		_ = s.conn.Close()
		observability.ListingSessionsActive().Dec()
		s.logger.Debug().Msg("listing session closed")
	})
}
