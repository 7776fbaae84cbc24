// Package catalog holds the enumerated term/level and batch codes notes are classified by.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Option is one selectable code with its display label.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Catalog lists the term levels and batches a note may be classified under.
type Catalog struct {
	TermLevels []Option `yaml:"term_levels" json:"termLevels"`
	Batches    []Option `yaml:"batches" json:"batches"`

	termIndex  map[string]string
	batchIndex map[string]string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(c.TermLevels) == 0 {
		return nil, fmt.Errorf("catalog has no term levels")
	}
	if len(c.Batches) == 0 {
		return nil, fmt.Errorf("catalog has no batches")
	}

	c.termIndex = make(map[string]string, len(c.TermLevels))
	for i, t := range c.TermLevels {
		t.Value = strings.TrimSpace(t.Value)
		if t.Value == "" || strings.TrimSpace(t.Label) == "" {
			return nil, fmt.Errorf("term level %d needs both value and label", i)
		}
		if _, dup := c.termIndex[t.Value]; dup {
			return nil, fmt.Errorf("duplicate term level %q", t.Value)
		}
		c.TermLevels[i] = t
		c.termIndex[t.Value] = t.Label
	}

	c.batchIndex = make(map[string]string, len(c.Batches))
	for i, b := range c.Batches {
		b.Value = strings.TrimSpace(b.Value)
		if b.Value == "" {
			return nil, fmt.Errorf("batch %d has no value", i)
		}
		if _, dup := c.batchIndex[b.Value]; dup {
			return nil, fmt.Errorf("duplicate batch %q", b.Value)
		}
		if b.Label == "" {
			b.Label = BatchLabel(b.Value)
		}
		c.Batches[i] = b
		c.batchIndex[b.Value] = b.Label
	}

	return &c, nil
}

// IsTermLevel reports whether code is a known term level.
func (c *Catalog) IsTermLevel(code string) bool {
	_, ok := c.termIndex[code]
	return ok
}

// IsBatch reports whether code is a known batch.
func (c *Catalog) IsBatch(code string) bool {
	_, ok := c.batchIndex[code]
	return ok
}

// TermLabel returns the display label for a term level, or "" if unknown.
func (c *Catalog) TermLabel(code string) string {
	return c.termIndex[code]
}

// BatchLabel returns the display label for a batch. Unknown non-empty batches
// still get the generic "<n>th Batch" form.
func (c *Catalog) BatchLabel(code string) string {
	if label, ok := c.batchIndex[code]; ok {
		return label
	}
	return BatchLabel(code)
}

// BatchLabel formats a batch code for display.
func BatchLabel(batch string) string {
	if batch == "" {
		return ""
	}
	return batch + "th Batch"
}

var legacyTermPattern = regexp.MustCompile(`(?i)Level\s*([1-4]).*Term\s*(I{1,2})`)

// GuessTermLevel extracts a term level code from free text such as
// "Level 3 Term II". It returns "" when the text carries no recognizable period.
func GuessTermLevel(text string) string {
	m := legacyTermPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	switch strings.ToUpper(m[2]) {
	case "I":
		return "L" + m[1] + "T1"
	case "II":
		return "L" + m[1] + "T2"
	}
	return ""
}
