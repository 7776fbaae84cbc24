package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"notehub/internal/catalog"
	"notehub/internal/handlers/mocks"
	"notehub/internal/identity"
	"notehub/internal/live"
	"notehub/internal/notes"
	"notehub/internal/service"
	service_mocks "notehub/internal/service/mocks"
	"notehub/internal/storage"
)

var testAdmin = &identity.Actor{ID: "admin-1", Email: "admin@uni.edu", Role: identity.RoleAdmin, EmailVerified: true}

func noteRouter(h *NoteHandler, actor *identity.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithActor(req.Context(), actor)))
		})
	})
	r.Get("/api/browse/{batch}/{termLevel}", h.Browse)
	r.Get("/api/notes/term/{termLevel}", h.ByTerm)
	r.Get("/api/admin/notes", h.AdminList)
	r.Get("/api/admin/notes/groups", h.Groups)
	r.Post("/api/admin/notes", h.Create)
	r.Put("/api/admin/notes/{id}", h.Update)
	r.Delete("/api/admin/notes/{id}", h.Delete)
	r.Get("/api/admin/notes/{id}/edit", h.Edit)
	return r
}

func TestNoteHandler_Reads(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	created := time.UnixMilli(1_700_000_000_000)
	fileNote := notes.Note{
		ID:             "n1",
		Title:          "Circuits",
		TermLevel:      "L2T1",
		Batch:          "13",
		FileKind:       "file",
		FileURL:        "https://drive.google.com/uc?export=download&id=ABC",
		UploadedByRole: notes.RoleAdmin,
		CreatedAt:      created,
	}

	tests := []struct {
		name          string
		url           string
		mockSetup     func(*mocks.MockNoteViews)
		wantStatus    int
		checkResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "browse by batch and term",
			url:  "/api/browse/13/L2T1",
			mockSetup: func(m *mocks.MockNoteViews) {
				m.EXPECT().
					Snapshot(gomock.Any(), notes.Scope{TermLevel: "L2T1", Batch: "13"}, notes.Criteria{}).
					Return(live.State{Notes: []notes.Note{fileNote}, Ready: true}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp NotesResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode error = %v", err)
				}
				if len(resp.Notes) != 1 || !resp.Ready {
					t.Fatalf("response = %+v", resp)
				}
				got := resp.Notes[0]
				if got.DisplayTerm != "Level 2 · Term I" || got.DisplayBatch != "13th Batch" {
					t.Errorf("labels = %q, %q", got.DisplayTerm, got.DisplayBatch)
				}
				if got.ViewURL != "https://drive.google.com/file/d/ABC/view" {
					t.Errorf("viewUrl = %q", got.ViewURL)
				}
			},
		},
		{
			name: "by term with search",
			url:  "/api/notes/term/L1T1?q=math",
			mockSetup: func(m *mocks.MockNoteViews) {
				m.EXPECT().
					Snapshot(gomock.Any(), notes.Scope{TermLevel: "L1T1"}, notes.Criteria{Search: "math"}).
					Return(live.State{Ready: true}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp NotesResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode error = %v", err)
				}
				if resp.Notes == nil || len(resp.Notes) != 0 {
					t.Errorf("notes = %#v, want empty array", resp.Notes)
				}
			},
		},
		{
			name: "admin list passes filters as criteria",
			url:  "/api/admin/notes?termLevel=L2T1&batch=13&q=circ",
			mockSetup: func(m *mocks.MockNoteViews) {
				m.EXPECT().
					Snapshot(gomock.Any(), notes.Scope{}, notes.Criteria{TermLevel: "L2T1", Batch: "13", Search: "circ"}).
					Return(live.State{Notes: []notes.Note{fileNote}, Ready: true}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "partial failure reports the failing stream",
			url:  "/api/notes/term/L2T1",
			mockSetup: func(m *mocks.MockNoteViews) {
				m.EXPECT().
					Snapshot(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(live.State{
						Notes:  []notes.Note{fileNote},
						Errors: map[live.Stream]error{live.StreamLegacy: &storage.StoreError{Op: "find", Kind: storage.KindConfiguration, Err: errors.New("no such function")}},
					}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp NotesResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode error = %v", err)
				}
				if len(resp.Notes) != 1 {
					t.Errorf("notes = %d, want 1", len(resp.Notes))
				}
				if resp.Errors["legacy"] == "" {
					t.Errorf("errors = %v, want legacy entry", resp.Errors)
				}
			},
		},
		{
			name: "both streams failing",
			url:  "/api/notes/term/L2T1",
			mockSetup: func(m *mocks.MockNoteViews) {
				m.EXPECT().
					Snapshot(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(live.State{}, &storage.StoreError{Op: "find", Kind: storage.KindUnavailable, Err: errors.New("busy")})
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "groups",
			url:  "/api/admin/notes/groups",
			mockSetup: func(m *mocks.MockNoteViews) {
				m.EXPECT().
					Snapshot(gomock.Any(), notes.Scope{}, notes.Criteria{}).
					Return(live.State{Groups: []notes.TermGroup{{Key: "L2T1", Label: "Level 2 · Term I", Count: 3}}}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp GroupsResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode error = %v", err)
				}
				if len(resp.Groups) != 1 || resp.Groups[0].Count != 3 {
					t.Errorf("groups = %+v", resp.Groups)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views := mocks.NewMockNoteViews(ctrl)
			tt.mockSetup(views)
			h := NewNoteHandler(service_mocks.NewMockNoteService(ctrl), views, catalog.Default())

			w := httptest.NewRecorder()
			noteRouter(h, testAdmin).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("GET %s status = %v, want %v (body %s)", tt.url, w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
		})
	}
}

func TestNoteHandler_Writes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tests := []struct {
		name       string
		method     string
		url        string
		body       any
		mockSetup  func(*service_mocks.MockNoteService)
		wantStatus int
	}{
		{
			name:   "create",
			method: http.MethodPost,
			url:    "/api/admin/notes",
			body: NoteRequest{
				Title: "Circuits", Subject: "EEE", TermLevel: "L2T1", Batch: "13",
				Link: "https://drive.google.com/file/d/ABC/view",
			},
			mockSetup: func(m *service_mocks.MockNoteService) {
				m.EXPECT().Create(gomock.Any(), testAdmin, service.CreateNoteRequest{
					Title: "Circuits", Subject: "EEE", TermLevel: "L2T1", Batch: "13",
					Link: "https://drive.google.com/file/d/ABC/view",
				}).Return(notes.Note{ID: "n1", Title: "Circuits"}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:   "create with a bad link",
			method: http.MethodPost,
			url:    "/api/admin/notes",
			body:   NoteRequest{Title: "Circuits", Link: "not a url"},
			mockSetup: func(m *service_mocks.MockNoteService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(notes.Note{}, &service.ValidationError{Field: "link", Message: "Paste a valid Google Drive file or folder link."})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "concurrent save",
			method: http.MethodPost,
			url:    "/api/admin/notes",
			body:   NoteRequest{Title: "Circuits"},
			mockSetup: func(m *service_mocks.MockNoteService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(notes.Note{}, service.ErrSaveInProgress)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "update",
			method: http.MethodPut,
			url:    "/api/admin/notes/n1",
			body:   NoteRequest{Title: "Circuits II", FileURL: " https://drive.google.com/drive/folders/F1 "},
			mockSetup: func(m *service_mocks.MockNoteService) {
				m.EXPECT().Update(gomock.Any(), testAdmin, "n1", service.UpdateNoteRequest{
					Title: "Circuits II", FileURL: " https://drive.google.com/drive/folders/F1 ",
				}).Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "update of a missing note",
			method: http.MethodPut,
			url:    "/api/admin/notes/gone",
			body:   NoteRequest{Title: "x"},
			mockSetup: func(m *service_mocks.MockNoteService) {
				m.EXPECT().Update(gomock.Any(), gomock.Any(), "gone", gomock.Any()).Return(service.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "delete confirmed",
			method: http.MethodDelete,
			url:    "/api/admin/notes/n1?confirm=true",
			mockSetup: func(m *service_mocks.MockNoteService) {
				m.EXPECT().Delete(gomock.Any(), testAdmin, "n1", true).Return(nil)
			},
			wantStatus: http.StatusNoContent,
		},
		{
			name:   "delete without confirmation",
			method: http.MethodDelete,
			url:    "/api/admin/notes/n1",
			mockSetup: func(m *service_mocks.MockNoteService) {
				m.EXPECT().Delete(gomock.Any(), testAdmin, "n1", false).Return(service.ErrConfirmationRequired)
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := service_mocks.NewMockNoteService(ctrl)
			tt.mockSetup(svc)
			h := NewNoteHandler(svc, mocks.NewMockNoteViews(ctrl), catalog.Default())

			var req *http.Request
			if tt.body != nil {
				req = httptest.NewRequest(tt.method, tt.url, jsonBody(t, tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.url, nil)
			}
			w := httptest.NewRecorder()
			noteRouter(h, testAdmin).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s status = %v, want %v (body %s)", tt.method, tt.url, w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestNoteHandler_EditGuessesLegacyTerm(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := service_mocks.NewMockNoteService(ctrl)
	svc.EXPECT().Get(gomock.Any(), "old").Return(notes.Note{
		ID:    "old",
		Title: "Thermo",
		Term:  "Level 3 Term II",
		Role:  notes.RoleAdmin,
	}, nil)
	h := NewNoteHandler(svc, mocks.NewMockNoteViews(ctrl), catalog.Default())

	w := httptest.NewRecorder()
	noteRouter(h, testAdmin).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/notes/old/edit", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Edit() status = %v", w.Code)
	}
	var resp EditorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if resp.TermLevel != "L3T2" {
		t.Errorf("TermLevel = %q, want L3T2", resp.TermLevel)
	}
	if resp.Note.DisplayTerm != "Level 3 Term II" {
		t.Errorf("DisplayTerm = %q", resp.Note.DisplayTerm)
	}
}
