package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"notehub/internal/catalog"
	"notehub/internal/contextutil"
	"notehub/internal/identity"
	"notehub/internal/notes"
	"notehub/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// LiveHandler streams a note view over a websocket. Every change to the
// underlying notes sends a fresh frame; stale frames are dropped.
type LiveHandler struct {
	views    NoteViews
	catalog  *catalog.Catalog
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(views NoteViews, cat *catalog.Catalog) *LiveHandler {
	return &LiveHandler{
		views:   views,
		catalog: cat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// LiveFrame is one message on the live socket. Groups is only sent for the
// unscoped admin view.
type LiveFrame struct {
	NotesResponse
	Groups []notes.TermGroup `json:"groups,omitempty"`
}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	q := r.URL.Query()
	scope := notes.Scope{TermLevel: q.Get("termLevel"), Batch: q.Get("batch")}
	if err := scope.Validate(); err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	if scope.Unscoped() && !identity.ActorFromContext(ctx).IsAdmin() {
		handleServiceError(w, ctx, service.ErrForbidden)
		return
	}
	criteria := notes.Criteria{Search: q.Get("q")}

	view, err := h.views.Open(ctx, scope, criteria)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	defer view.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	logger.InfoContext(ctx, "live view opened", "term_level", scope.TermLevel, "batch", scope.Batch)
	defer logger.InfoContext(ctx, "live view closed", "term_level", scope.TermLevel, "batch", scope.Batch)

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case st, ok := <-view.Updates():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			frame := LiveFrame{NotesResponse: renderNotes(h.catalog, st)}
			if scope.Unscoped() {
				frame.Groups = st.Groups
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				logger.WarnContext(ctx, "failed to write live frame", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and closes done once the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
