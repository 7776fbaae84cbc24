// Package drivelink turns pasted cloud-drive share links into canonical
// download and preview URLs.
package drivelink

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind tells whether a link points at a single file or a folder.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

const driveBase = "https://drive.google.com"

var (
	filePathPattern    = regexp.MustCompile(`/file/d/([^/]+)`)
	folderPathPattern  = regexp.MustCompile(`/folders/([^/]+)`)
	genericPathPattern = regexp.MustCompile(`/d/([^/]+)`)
)

// Link is the result of normalizing a share link.
// An unresolved link has an empty ID and Kind and carries the raw input in both URLs.
type Link struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	FinalURL   string `json:"finalUrl"`
	PreviewURL string `json:"previewUrl"`
}

// Resolved reports whether a resource identifier was found.
func (l Link) Resolved() bool {
	return l.ID != ""
}

// Normalize maps a raw share link to its canonical form. It never fails:
// anything it cannot interpret is passed through unchanged.
func Normalize(raw string) Link {
	u, ok := parseAbsolute(raw)
	if !ok {
		return passthrough(raw)
	}

	idParam := u.Query().Get("id")
	folderID := submatch(folderPathPattern, u.Path)

	// A folder path wins over an id query parameter.
	if folderID != "" || (idParam != "" && strings.Contains(u.Path, "/folders/")) {
		id := folderID
		if id == "" {
			id = idParam
		}
		return FolderLink(id)
	}

	id := submatch(filePathPattern, u.Path)
	if id == "" {
		id = idParam
	}
	if id == "" {
		id = submatch(genericPathPattern, u.Path)
	}
	if id != "" {
		return FileLink(id)
	}

	return passthrough(raw)
}

// FileLink builds the canonical link for a file identifier.
func FileLink(id string) Link {
	return Link{
		ID:         id,
		Kind:       KindFile,
		FinalURL:   driveBase + "/uc?export=download&id=" + url.QueryEscape(id),
		PreviewURL: filePreview(id),
	}
}

// FolderLink builds the canonical link for a folder identifier.
func FolderLink(id string) Link {
	view := driveBase + "/drive/folders/" + url.PathEscape(id)
	return Link{
		ID:         id,
		Kind:       KindFolder,
		FinalURL:   view,
		PreviewURL: view,
	}
}

// PreviewURL maps a stored file URL to its human-viewable page. Folder links and
// anything unparseable come back unchanged.
func PreviewURL(raw string) string {
	u, ok := parseAbsolute(raw)
	if !ok {
		return raw
	}
	if id := u.Query().Get("id"); id != "" {
		return filePreview(id)
	}
	if id := submatch(filePathPattern, u.Path); id != "" {
		return filePreview(id)
	}
	if id := submatch(genericPathPattern, u.Path); id != "" {
		return filePreview(id)
	}
	return raw
}

func filePreview(id string) string {
	return driveBase + "/file/d/" + url.PathEscape(id) + "/view"
}

// parseAbsolute accepts only absolute URLs with a host; url.Parse alone is
// happy to read free text as a relative path.
func parseAbsolute(raw string) (*url.URL, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func passthrough(raw string) Link {
	return Link{FinalURL: raw, PreviewURL: raw}
}
