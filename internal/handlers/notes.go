package handlers

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_views.go -package=mocks notehub/internal/handlers NoteViews

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"notehub/internal/catalog"
	"notehub/internal/identity"
	"notehub/internal/live"
	"notehub/internal/notes"
	"notehub/internal/service"
)

// NoteViews reads merged note views. *live.Subscriber implements it.
type NoteViews interface {
	Snapshot(ctx context.Context, scope notes.Scope, criteria notes.Criteria) (live.State, error)
	Open(ctx context.Context, scope notes.Scope, criteria notes.Criteria) (*live.View, error)
}

// NoteHandler serves note reads and admin writes.
type NoteHandler struct {
	notes   service.NoteService
	views   NoteViews
	catalog *catalog.Catalog
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(svc service.NoteService, views NoteViews, cat *catalog.Catalog) *NoteHandler {
	return &NoteHandler{
		notes:   svc,
		views:   views,
		catalog: cat,
	}
}

// NoteView is a note with the labels and link a list shows.
type NoteView struct {
	notes.Note
	DisplayTerm  string `json:"displayTerm"`
	DisplayBatch string `json:"displayBatch"`
	ViewURL      string `json:"viewUrl"`
}

// NotesResponse is one rendering of a note list.
type NotesResponse struct {
	Notes []NoteView `json:"notes"`
	Ready bool       `json:"ready"`
	// Errors names the streams that failed; the list still holds what the
	// other stream returned.
	Errors map[string]string `json:"errors,omitempty"`
}

// GroupsResponse summarizes notes by term level.
type GroupsResponse struct {
	Groups []notes.TermGroup `json:"groups"`
}

// EditorResponse prefills the admin edit form.
type EditorResponse struct {
	Note      NoteView `json:"note"`
	TermLevel string   `json:"termLevel"`
}

// NoteRequest is the admin create and edit form. Link is read on create,
// FileURL on edit.
type NoteRequest struct {
	Title         string `json:"title"`
	University    string `json:"university"`
	Subject       string `json:"subject"`
	TermLevel     string `json:"termLevel"`
	Batch         string `json:"batch"`
	Link          string `json:"link,omitempty"`
	FileURL       string `json:"fileUrl,omitempty"`
	CoverImageURL string `json:"coverImageUrl"`
}

// Browse lists notes for one batch and term.
func (h *NoteHandler) Browse(w http.ResponseWriter, r *http.Request) {
	scope := notes.Scope{
		TermLevel: chi.URLParam(r, "termLevel"),
		Batch:     chi.URLParam(r, "batch"),
	}
	h.list(w, r, scope, notes.Criteria{Search: r.URL.Query().Get("q")})
}

// ByTerm lists notes for one term across batches.
func (h *NoteHandler) ByTerm(w http.ResponseWriter, r *http.Request) {
	scope := notes.Scope{TermLevel: chi.URLParam(r, "termLevel")}
	h.list(w, r, scope, notes.Criteria{Search: r.URL.Query().Get("q")})
}

// AdminList lists every admin note, filtered by the query parameters.
func (h *NoteHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.list(w, r, notes.Scope{}, notes.Criteria{
		TermLevel: q.Get("termLevel"),
		Batch:     q.Get("batch"),
		Search:    q.Get("q"),
	})
}

func (h *NoteHandler) list(w http.ResponseWriter, r *http.Request, scope notes.Scope, criteria notes.Criteria) {
	ctx := r.Context()
	state, err := h.views.Snapshot(ctx, scope, criteria)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, renderNotes(h.catalog, state))
}

// Groups summarizes every admin note by term level.
func (h *NoteHandler) Groups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := h.views.Snapshot(ctx, notes.Scope{}, notes.Criteria{})
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, GroupsResponse{Groups: state.Groups})
}

// Create uploads a note.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.notes.Create(ctx, identity.ActorFromContext(ctx), service.CreateNoteRequest{
		Title:         req.Title,
		University:    req.University,
		Subject:       req.Subject,
		TermLevel:     req.TermLevel,
		Batch:         req.Batch,
		Link:          req.Link,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, noteView(h.catalog, note))
}

// Update rewrites a note's editable fields.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.notes.Update(ctx, identity.ActorFromContext(ctx), chi.URLParam(r, "id"), service.UpdateNoteRequest{
		Title:         req.Title,
		University:    req.University,
		Subject:       req.Subject,
		TermLevel:     req.TermLevel,
		Batch:         req.Batch,
		FileURL:       req.FileURL,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, MessageResponse{Message: "Note updated."})
}

// Delete removes a note. The request must carry confirm=true.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := h.notes.Delete(ctx, identity.ActorFromContext(ctx), chi.URLParam(r, "id"), confirmed); err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Edit loads a note for the edit form, guessing a term level for legacy records.
func (h *NoteHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	note, err := h.notes.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, EditorResponse{
		Note:      noteView(h.catalog, note),
		TermLevel: note.EditorTermLevel(),
	})
}

func renderNotes(cat *catalog.Catalog, state live.State) NotesResponse {
	resp := NotesResponse{
		Notes: make([]NoteView, 0, len(state.Notes)),
		Ready: state.Ready,
	}
	for _, n := range state.Notes {
		resp.Notes = append(resp.Notes, noteView(cat, n))
	}
	if len(state.Errors) > 0 {
		resp.Errors = make(map[string]string, len(state.Errors))
		for stream, err := range state.Errors {
			resp.Errors[string(stream)] = service.UserMessage(err)
		}
	}
	return resp
}

func noteView(cat *catalog.Catalog, n notes.Note) NoteView {
	return NoteView{
		Note:         n,
		DisplayTerm:  n.DisplayTermLabel(cat),
		DisplayBatch: n.DisplayBatchLabel(cat),
		ViewURL:      n.ViewURL(),
	}
}
