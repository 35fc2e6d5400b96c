package handler_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/owasp-nest/nest-api/internal/dto"
	"github.com/owasp-nest/nest-api/internal/handler"
	"github.com/owasp-nest/nest-api/internal/search"
	"github.com/owasp-nest/nest-api/internal/service"
)

type chapterSearchStub struct {
	mu         sync.Mutex
	queries    []string
	totalPages int
}

func (s *chapterSearchStub) Search(_ context.Context, _ string, query string, page int) (search.Page[dto.ChapterCard], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return search.Page[dto.ChapterCard]{
		Items: []dto.ChapterCard{{
			Key:     "www-chapter-london",
			Name:    "London",
			Leaders: dto.LeadersFrom([]string{"Sam"}),
		}},
		TotalPages: s.totalPages,
		TotalItems: int64(s.totalPages),
	}, nil
}

func newListingApp(stub *chapterSearchStub, delay time.Duration) *fiber.App {
	listings := service.NewListingService(service.ListingClients{Chapters: stub}, delay, validator.New(), zerolog.Nop())
	app := fiber.New()
	handler.NewListingHandler(listings, zerolog.Nop()).Register(app.Group("/api/v1"))
	return app
}

type listingEnvelope struct {
	Success bool                                 `json:"success"`
	Data    dto.ListingResponse[dto.ChapterCard] `json:"data"`
}

func TestListingHandler_PageRendersLoadedState(t *testing.T) {
	stub := &chapterSearchStub{totalPages: 2}
	app := newListingApp(stub, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chapters?q=london&page=5", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload listingEnvelope
	decodeResponse(t, resp, &payload)
	require.True(t, payload.Success)
	require.Equal(t, "OWASP Chapters", payload.Data.Title)
	require.Equal(t, "london", payload.Data.Query)
	require.Equal(t, 2, payload.Data.Page)
	require.True(t, payload.Data.IsLoaded)
	require.Len(t, payload.Data.Items, 1)
	require.Equal(t, []string{"Sam"}, payload.Data.Items[0].Leaders.Names())
}

func TestListingHandler_RejectsBadQuery(t *testing.T) {
	app := newListingApp(&chapterSearchStub{totalPages: 1}, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chapters?page=0", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chapters?page=-3", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListingHandler_UnservedIndexIsNotRouted(t *testing.T) {
	app := newListingApp(&chapterSearchStub{totalPages: 1}, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListingHandler_SessionRequiresUpgrade(t *testing.T) {
	app := newListingApp(&chapterSearchStub{totalPages: 1}, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chapters/ws", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

type sessionEvent struct {
	Type  string                                `json:"type"`
	State *dto.ListingResponse[dto.ChapterCard] `json:"state"`
}

func readEvent(t *testing.T, conn *websocket.Conn) sessionEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var event sessionEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	return event
}

func TestListingHandler_SessionStreamsStateAndScrollTop(t *testing.T) {
	stub := &chapterSearchStub{totalPages: 3}
	app := newListingApp(stub, 50*time.Millisecond)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/chapters/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	loading := readEvent(t, conn)
	require.Equal(t, service.ListingMessageState, loading.Type)
	require.False(t, loading.State.IsLoaded)
	require.Equal(t, "OWASP Chapters", loading.State.Title)

	ready := readEvent(t, conn)
	require.True(t, ready.State.IsLoaded)
	require.Equal(t, 3, ready.State.TotalPages)

	require.NoError(t, conn.WriteJSON(service.ListingCommand{Type: service.ListingMessagePage, Page: 7}))

	paging := readEvent(t, conn)
	require.Equal(t, service.ListingMessageState, paging.Type)
	require.Equal(t, 3, paging.State.Page)
	require.False(t, paging.State.IsLoaded)
	require.Equal(t, service.ListingMessageScrollTop, readEvent(t, conn).Type)
	require.True(t, readEvent(t, conn).State.IsLoaded)

	require.NoError(t, conn.WriteJSON(service.ListingCommand{Type: service.ListingMessageSearch, Query: "lon"}))
	require.NoError(t, conn.WriteJSON(service.ListingCommand{Type: service.ListingMessageSearch, Query: "london"}))

	searching := readEvent(t, conn)
	require.Equal(t, "london", searching.State.Query)
	require.Equal(t, 1, searching.State.Page)
	require.False(t, searching.State.IsLoaded)
	require.True(t, readEvent(t, conn).State.IsLoaded)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Equal(t, []string{"", "", "london"}, stub.queries)
}

func TestListingHandler_SessionReportsUnknownMessages(t *testing.T) {
	app := newListingApp(&chapterSearchStub{totalPages: 1}, 0)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/chapters/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent(t, conn)
	readEvent(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "sort"}))
	require.Equal(t, service.ListingMessageError, readEvent(t, conn).Type)
}
