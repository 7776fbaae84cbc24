package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_service.go -package=mocks notehub/internal/service NoteService

import (
	"context"
	"errors"
	"strings"

	"notehub/internal/catalog"
	"notehub/internal/contextutil"
	"notehub/internal/drivelink"
	"notehub/internal/identity"
	"notehub/internal/notes"
	"notehub/internal/storage"
)

// CreateNoteRequest is the admin upload form.
type CreateNoteRequest struct {
	Title         string
	University    string
	Subject       string
	TermLevel     string
	Batch         string
	Link          string
	CoverImageURL string
}

// UpdateNoteRequest is the admin edit form. FileURL is stored as entered.
type UpdateNoteRequest struct {
	Title         string
	University    string
	Subject       string
	TermLevel     string
	Batch         string
	FileURL       string
	CoverImageURL string
}

// NoteService writes notes. Reads go through live views, which pick up every
// write from the store.
type NoteService interface {
	Create(ctx context.Context, actor *identity.Actor, req CreateNoteRequest) (notes.Note, error)
	Update(ctx context.Context, actor *identity.Actor, id string, req UpdateNoteRequest) error
	Delete(ctx context.Context, actor *identity.Actor, id string, confirmed bool) error
	// Get loads one note for the editor.
	Get(ctx context.Context, id string) (notes.Note, error)
}

// noteService implements NoteService.
type noteService struct {
	store             storage.DocumentStore
	catalog           *catalog.Catalog
	defaultUniversity string
	guard             *saveGuard
}

// NewNoteService creates a new NoteService.
func NewNoteService(store storage.DocumentStore, cat *catalog.Catalog, defaultUniversity string) NoteService {
	return &noteService{
		store:             store,
		catalog:           cat,
		defaultUniversity: defaultUniversity,
		guard:             newSaveGuard(),
	}
}

// Create validates the upload and writes a new note with server-assigned id
// and creation time.
func (s *noteService) Create(ctx context.Context, actor *identity.Actor, req CreateNoteRequest) (notes.Note, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := requireAdmin(actor); err != nil {
		return notes.Note{}, err
	}

	link := drivelink.Normalize(strings.TrimSpace(req.Link))
	if !link.Resolved() {
		return notes.Note{}, &ValidationError{Field: "link", Message: "Paste a valid Google Drive file or folder link."}
	}
	batch := strings.TrimSpace(req.Batch)
	if batch == "" {
		return notes.Note{}, &ValidationError{Field: "batch", Message: "Please select a batch."}
	}
	if !s.catalog.IsBatch(batch) {
		return notes.Note{}, &ValidationError{Field: "batch", Message: "Unknown batch."}
	}
	termLevel := strings.TrimSpace(req.TermLevel)
	if !s.catalog.IsTermLevel(termLevel) {
		return notes.Note{}, &ValidationError{Field: "termLevel", Message: "Please select a term."}
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return notes.Note{}, &ValidationError{Field: "title", Message: "Title is required."}
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return notes.Note{}, &ValidationError{Field: "subject", Message: "Subject is required."}
	}
	university := strings.TrimSpace(req.University)
	if university == "" {
		university = s.defaultUniversity
	}

	release, err := s.guard.acquire(actor.ID + "/create")
	if err != nil {
		return notes.Note{}, err
	}
	defer release()

	fields := map[string]any{
		notes.FieldTitle:           title,
		notes.FieldUniversity:      university,
		notes.FieldSubject:         subject,
		notes.FieldTermLevel:       termLevel,
		notes.FieldTermLabel:       s.catalog.TermLabel(termLevel),
		notes.FieldBatch:           batch,
		notes.FieldBatchLabel:      s.catalog.BatchLabel(batch),
		notes.FieldFileKind:        string(link.Kind),
		notes.FieldFileURL:         link.FinalURL,
		notes.FieldPreviewURL:      link.PreviewURL,
		notes.FieldCoverImageURL:   strings.TrimSpace(req.CoverImageURL),
		notes.FieldUploadedBy:      actor.ID,
		notes.FieldUploadedByEmail: actor.Email,
		notes.FieldUploadedByRole:  notes.RoleAdmin,
	}

	doc, err := s.store.Insert(ctx, notes.Collection, fields)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create note", "error", err)
		return notes.Note{}, WrapError(err, "create note")
	}

	logger.InfoContext(ctx, "note created",
		"note_id", doc.ID,
		"term_level", termLevel,
		"batch", batch,
		"file_kind", string(link.Kind),
	)
	return notes.FromFields(doc.ID, doc.Fields, doc.CreatedAt), nil
}

// Update overwrites the descriptive, classification and content fields of a
// note in one write, with labels derived from the selected codes.
func (s *noteService) Update(ctx context.Context, actor *identity.Actor, id string, req UpdateNoteRequest) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := requireAdmin(actor); err != nil {
		return err
	}

	title := strings.TrimSpace(req.Title)
	university := strings.TrimSpace(req.University)
	termLevel := strings.TrimSpace(req.TermLevel)
	subject := strings.TrimSpace(req.Subject)
	fileURL := strings.TrimSpace(req.FileURL)
	batch := strings.TrimSpace(req.Batch)

	if title == "" || university == "" || termLevel == "" || subject == "" || fileURL == "" {
		return &ValidationError{Field: "form", Message: "Please fill all required fields."}
	}
	if !s.catalog.IsTermLevel(termLevel) {
		return &ValidationError{Field: "termLevel", Message: "Please select a term."}
	}
	if batch != "" && !s.catalog.IsBatch(batch) {
		return &ValidationError{Field: "batch", Message: "Unknown batch."}
	}

	release, err := s.guard.acquire(actor.ID + "/" + id)
	if err != nil {
		return err
	}
	defer release()

	label := s.catalog.TermLabel(termLevel)
	fields := map[string]any{
		notes.FieldTitle:         title,
		notes.FieldUniversity:    university,
		notes.FieldSubject:       subject,
		notes.FieldTermLevel:     termLevel,
		notes.FieldTermLabel:     label,
		notes.FieldTerm:          label,
		notes.FieldBatch:         batch,
		notes.FieldBatchLabel:    s.catalog.BatchLabel(batch),
		notes.FieldFileURL:       fileURL,
		notes.FieldCoverImageURL: strings.TrimSpace(req.CoverImageURL),
	}

	if err := s.store.Update(ctx, notes.Collection, id, fields); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		logger.ErrorContext(ctx, "failed to update note", "note_id", id, "error", err)
		return WrapError(err, "update note")
	}

	logger.InfoContext(ctx, "note updated", "note_id", id)
	return nil
}

// Delete permanently removes a note once the caller has confirmed.
func (s *noteService) Delete(ctx context.Context, actor *identity.Actor, id string, confirmed bool) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := requireAdmin(actor); err != nil {
		return err
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "id", Message: "Note id is required."}
	}

	release, err := s.guard.acquire(actor.ID + "/" + id)
	if err != nil {
		return err
	}
	defer release()

	if err := s.store.Delete(ctx, notes.Collection, id); err != nil {
		logger.ErrorContext(ctx, "failed to delete note", "note_id", id, "error", err)
		return WrapError(err, "delete note")
	}

	logger.InfoContext(ctx, "note deleted", "note_id", id)
	return nil
}

// Get loads one note.
func (s *noteService) Get(ctx context.Context, id string) (notes.Note, error) {
	doc, err := s.store.Get(ctx, notes.Collection, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notes.Note{}, ErrNotFound
		}
		return notes.Note{}, WrapError(err, "get note")
	}
	return notes.FromFields(doc.ID, doc.Fields, doc.CreatedAt), nil
}

func requireAdmin(actor *identity.Actor) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
