package drivelink

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantID  string
		want    Kind
		passRaw bool
	}{
		{name: "file view link", raw: "https://drive.google.com/file/d/ABC123/view?usp=sharing", wantID: "ABC123", want: KindFile},
		{name: "file path on other host", raw: "https://service/file/d/ABC123/view", wantID: "ABC123", want: KindFile},
		{name: "open id param", raw: "https://drive.google.com/open?id=XYZ", wantID: "XYZ", want: KindFile},
		{name: "generic d path", raw: "https://docs.google.com/document/d/DOC9/edit", wantID: "DOC9", want: KindFile},
		{name: "folder path", raw: "https://drive.google.com/drive/folders/FOLD1?usp=sharing", wantID: "FOLD1", want: KindFolder},
		{name: "folder path beats id param", raw: "https://drive.google.com/drive/folders/FOLD2?id=OTHER", wantID: "FOLD2", want: KindFolder},
		{name: "folder context with id param", raw: "https://drive.google.com/drive/folders/?id=FOLD3", wantID: "FOLD3", want: KindFolder},
		{name: "free text", raw: "not a url", passRaw: true},
		{name: "empty", raw: "", passRaw: true},
		{name: "url without identifier", raw: "https://example.com/some/page", passRaw: true},
		{name: "relative path", raw: "/file/d/ABC/view", passRaw: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)

			if tt.passRaw {
				want := Link{FinalURL: tt.raw, PreviewURL: tt.raw}
				if got != want {
					t.Errorf("Normalize(%q) = %+v, want %+v", tt.raw, got, want)
				}
				if got.Resolved() {
					t.Error("Resolved() = true for passthrough link")
				}
				return
			}

			if got.ID != tt.wantID {
				t.Errorf("Normalize(%q).ID = %q, want %q", tt.raw, got.ID, tt.wantID)
			}
			if got.Kind != tt.want {
				t.Errorf("Normalize(%q).Kind = %q, want %q", tt.raw, got.Kind, tt.want)
			}
		})
	}
}

func TestNormalize_FileURLsDiffer(t *testing.T) {
	got := Normalize("https://drive.google.com/file/d/ABC123/view")

	if !strings.Contains(got.FinalURL, "export=download") || !strings.Contains(got.FinalURL, "ABC123") {
		t.Errorf("FinalURL = %q, want download form with id", got.FinalURL)
	}
	if !strings.Contains(got.PreviewURL, "/file/d/ABC123/view") {
		t.Errorf("PreviewURL = %q, want view page with id", got.PreviewURL)
	}
	if got.FinalURL == got.PreviewURL {
		t.Error("file FinalURL and PreviewURL must differ")
	}
}

func TestNormalize_FolderURLsEqual(t *testing.T) {
	got := Normalize("https://drive.google.com/drive/folders/F1")
	if got.FinalURL != got.PreviewURL {
		t.Errorf("folder FinalURL %q != PreviewURL %q", got.FinalURL, got.PreviewURL)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://drive.google.com/file/d/ABC123/view?usp=sharing",
		"https://drive.google.com/drive/folders/FOLD1",
		"https://drive.google.com/open?id=XYZ",
	}

	for _, raw := range inputs {
		first := Normalize(raw)
		for _, again := range []string{first.FinalURL, first.PreviewURL} {
			second := Normalize(again)
			if second.ID != first.ID || second.Kind != first.Kind {
				t.Errorf("Normalize(%q) = %+v, want id %q kind %q", again, second, first.ID, first.Kind)
			}
		}
	}
}

func TestPreviewURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://drive.google.com/uc?export=download&id=ABC", "https://drive.google.com/file/d/ABC/view"},
		{"https://drive.google.com/file/d/ABC/view", "https://drive.google.com/file/d/ABC/view"},
		{"https://docs.google.com/presentation/d/P1/edit", "https://drive.google.com/file/d/P1/view"},
		{"https://drive.google.com/drive/folders/F1", "https://drive.google.com/drive/folders/F1"},
		{"garbage", "garbage"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := PreviewURL(tt.raw); got != tt.want {
				t.Errorf("PreviewURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
