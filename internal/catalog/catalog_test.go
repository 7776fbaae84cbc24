package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()

	if len(c.TermLevels) != 8 {
		t.Fatalf("Default() term levels = %d, want 8", len(c.TermLevels))
	}
	if len(c.Batches) != 7 {
		t.Fatalf("Default() batches = %d, want 7", len(c.Batches))
	}
	if got := c.TermLabel("L2T1"); got != "Level 2 · Term I" {
		t.Errorf("TermLabel(L2T1) = %q", got)
	}
	if got := c.BatchLabel("13"); got != "13th Batch" {
		t.Errorf("BatchLabel(13) = %q", got)
	}
	if !c.IsTermLevel("L4T2") || c.IsTermLevel("L5T1") {
		t.Error("IsTermLevel() mismatch")
	}
	if !c.IsBatch("18") || c.IsBatch("19") {
		t.Error("IsBatch() mismatch")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid",
			yaml: "term_levels:\n  - {value: A, label: Alpha}\nbatches:\n  - {value: \"1\", label: First}\n",
		},
		{
			name:    "no terms",
			yaml:    "batches:\n  - {value: \"1\"}\n",
			wantErr: true,
		},
		{
			name:    "term without label",
			yaml:    "term_levels:\n  - {value: A}\nbatches:\n  - {value: \"1\"}\n",
			wantErr: true,
		},
		{
			name:    "duplicate batch",
			yaml:    "term_levels:\n  - {value: A, label: Alpha}\nbatches:\n  - {value: \"1\"}\n  - {value: \"1\"}\n",
			wantErr: true,
		},
		{
			name:    "malformed",
			yaml:    "term_levels: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if len(c.TermLevels) != 8 {
		t.Errorf("Load(\"\") should return the default catalog")
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "term_levels:\n  - {value: L1T1, label: First}\nbatches:\n  - {value: \"19\"}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.TermLabel("L1T1") != "First" {
		t.Errorf("TermLabel(L1T1) = %q, want First", c.TermLabel("L1T1"))
	}
	if c.BatchLabel("19") != "19th Batch" {
		t.Errorf("BatchLabel(19) = %q, want generated label", c.BatchLabel("19"))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() on missing file expected error")
	}
}

func TestGuessTermLevel(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Level 3 Term II", "L3T2"},
		{"level 1 term i", "L1T1"},
		{"Level 2 · Term I", "L2T1"},
		{"Level 4, Term II (final)", "L4T2"},
		{"Level 5 Term I", ""},
		{"Spring semester", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := GuessTermLevel(tt.text); got != tt.want {
				t.Errorf("GuessTermLevel(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestBatchLabel(t *testing.T) {
	if BatchLabel("") != "" {
		t.Error("BatchLabel(\"\") should be empty")
	}
	if BatchLabel("15") != "15th Batch" {
		t.Errorf("BatchLabel(15) = %q", BatchLabel("15"))
	}
}
