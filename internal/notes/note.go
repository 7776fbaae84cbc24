// Package notes holds the canonical note record and the pure pipeline stages
// that turn raw store snapshots into ordered, filtered and grouped views.
package notes

import (
	"strconv"
	"time"

	"notehub/internal/catalog"
	"notehub/internal/drivelink"
)

// Collection is the store collection notes live in.
const Collection = "notes"

// RoleAdmin is the only role whose notes appear in curated views.
const RoleAdmin = "admin"

// Stored field names.
const (
	FieldTitle           = "title"
	FieldUniversity      = "university"
	FieldSubject         = "subject"
	FieldTermLevel       = "termLevel"
	FieldTermLabel       = "termLabel"
	FieldTerm            = "term"
	FieldBatch           = "batch"
	FieldBatchLabel      = "batchLabel"
	FieldFileKind        = "fileKind"
	FieldFileURL         = "fileUrl"
	FieldPreviewURL      = "previewUrl"
	FieldCoverImageURL   = "coverImageUrl"
	FieldUploadedBy      = "uploadedBy"
	FieldUploadedByEmail = "uploadedByEmail"
	FieldUploadedByRole  = "uploadedByRole"
	FieldRole            = "role"
)

// Note is a curated reference to an externally hosted document or folder.
// Records written under the legacy schema carry Role and Term instead of
// UploadedByRole and TermLevel; both shapes decode into this one type.
type Note struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	University      string         `json:"university"`
	Subject         string         `json:"subject"`
	TermLevel       string         `json:"termLevel,omitempty"`
	TermLabel       string         `json:"termLabel,omitempty"`
	Term            string         `json:"term,omitempty"`
	Batch           string         `json:"batch,omitempty"`
	BatchLabel      string         `json:"batchLabel,omitempty"`
	FileKind        drivelink.Kind `json:"fileKind,omitempty"`
	FileURL         string         `json:"fileUrl"`
	PreviewURL      string         `json:"previewUrl,omitempty"`
	CoverImageURL   string         `json:"coverImageUrl,omitempty"`
	UploadedBy      string         `json:"uploadedBy,omitempty"`
	UploadedByEmail string         `json:"uploadedByEmail,omitempty"`
	UploadedByRole  string         `json:"uploadedByRole,omitempty"`
	Role            string         `json:"role,omitempty"`
	CreatedAt       time.Time      `json:"createdAt,omitzero"`
}

// FromFields maps a raw stored document onto the canonical shape.
// A zero createdAt means the record has no server timestamp.
func FromFields(id string, fields map[string]any, createdAt time.Time) Note {
	return Note{
		ID:              id,
		Title:           stringField(fields, FieldTitle),
		University:      stringField(fields, FieldUniversity),
		Subject:         stringField(fields, FieldSubject),
		TermLevel:       stringField(fields, FieldTermLevel),
		TermLabel:       stringField(fields, FieldTermLabel),
		Term:            stringField(fields, FieldTerm),
		Batch:           stringField(fields, FieldBatch),
		BatchLabel:      stringField(fields, FieldBatchLabel),
		FileKind:        drivelink.Kind(stringField(fields, FieldFileKind)),
		FileURL:         stringField(fields, FieldFileURL),
		PreviewURL:      stringField(fields, FieldPreviewURL),
		CoverImageURL:   stringField(fields, FieldCoverImageURL),
		UploadedBy:      stringField(fields, FieldUploadedBy),
		UploadedByEmail: stringField(fields, FieldUploadedByEmail),
		UploadedByRole:  stringField(fields, FieldUploadedByRole),
		Role:            stringField(fields, FieldRole),
		CreatedAt:       createdAt,
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		// Older records sometimes stored batch numbers as numbers.
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Visible reports whether the note belongs in curated views.
func (n Note) Visible() bool {
	return n.UploadedByRole == RoleAdmin || n.Role == RoleAdmin
}

// Legacy reports whether the note was written under the legacy schema.
func (n Note) Legacy() bool {
	return n.UploadedByRole == "" && n.Role != ""
}

// CreatedMillis is the sort key: epoch milliseconds, or 0 when absent.
func (n Note) CreatedMillis() int64 {
	if n.CreatedAt.IsZero() {
		return 0
	}
	return n.CreatedAt.UnixMilli()
}

// DisplayTermLabel prefers the catalog label for the stored code and falls
// back to whatever label or free text the record carries.
func (n Note) DisplayTermLabel(cat *catalog.Catalog) string {
	if label := cat.TermLabel(n.TermLevel); label != "" {
		return label
	}
	for _, s := range []string{n.TermLabel, n.TermLevel, n.Term} {
		if s != "" {
			return s
		}
	}
	return ""
}

// DisplayBatchLabel derives the batch label from the code when present.
func (n Note) DisplayBatchLabel(cat *catalog.Catalog) string {
	if n.Batch != "" {
		return cat.BatchLabel(n.Batch)
	}
	return n.BatchLabel
}

// ViewURL is the link shown for opening the note in a browser.
func (n Note) ViewURL() string {
	return drivelink.PreviewURL(n.FileURL)
}

// EditorTermLevel picks the term level an editor form starts from: the stored
// code, else one guessed from legacy text, else the first period.
func (n Note) EditorTermLevel() string {
	if n.TermLevel != "" {
		return n.TermLevel
	}
	if guess := catalog.GuessTermLevel(n.Term); guess != "" {
		return guess
	}
	return "L1T1"
}

// VisibleOnly drops notes that are not admin-curated.
func VisibleOnly(in []Note) []Note {
	out := make([]Note, 0, len(in))
	for _, n := range in {
		if n.Visible() {
			out = append(out, n)
		}
	}
	return out
}
