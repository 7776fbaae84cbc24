package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"notehub/internal/catalog"
	"notehub/internal/live"
	"notehub/internal/notes"
	"notehub/internal/storage"
)

var (
	listTerm  string
	listBatch string
	listQuery string
	listJSON  bool
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Inspect and load notes",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List admin notes, merged across both record schemas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		views := live.NewSubscriber(a.docs, a.catalog, a.cfg.MergePrecedence)
		state, err := views.Snapshot(ctx, notes.Scope{}, notes.Criteria{
			TermLevel: listTerm,
			Batch:     listBatch,
			Search:    listQuery,
		})
		if err != nil {
			return fmt.Errorf("list notes: %w", err)
		}
		for stream, err := range state.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s notes unavailable: %v\n", stream, err)
		}

		if listJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(state.Notes)
		}
		return printNotes(cmd.OutOrStdout(), state.Notes, a.catalog)
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file.json]",
	Short: "Load raw note records from a JSON array",
	Long: `Each element is stored as-is in the notes collection. An "id" field sets the
document id (generated when absent) and an optional "createdAt" of epoch
milliseconds or RFC 3339 text sets the timestamp. Records without one keep no
timestamp and sort last.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		docs, err := parseImport(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		for i, doc := range docs {
			if err := a.docs.Put(ctx, notes.Collection, doc); err != nil {
				return fmt.Errorf("record %d (%s): %w", i, doc.ID, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d notes\n", len(docs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(listCmd, importCmd)
	listCmd.Flags().StringVar(&listTerm, "term", "", "Filter by term level, e.g. L2T1")
	listCmd.Flags().StringVar(&listBatch, "batch", "", "Filter by batch")
	listCmd.Flags().StringVar(&listQuery, "q", "", "Search title and subject")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}

func printNotes(w io.Writer, list []notes.Note, cat *catalog.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTERM\tBATCH\tSCHEMA\tCREATED")
	for _, n := range list {
		schema := "current"
		if n.Legacy() {
			schema = "legacy"
		}
		created := "-"
		if !n.CreatedAt.IsZero() {
			created = n.CreatedAt.Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.Title, n.DisplayTermLabel(cat), n.DisplayBatchLabel(cat), schema, created)
	}
	return tw.Flush()
}

// parseImport decodes a JSON array of raw note records.
func parseImport(data []byte) ([]storage.Document, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	docs := make([]storage.Document, 0, len(raw))
	for i, fields := range raw {
		if fields == nil {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		doc := storage.Document{ID: uuid.NewString(), Fields: fields}

		if v, ok := fields["id"]; ok {
			id, isString := v.(string)
			if !isString || strings.TrimSpace(id) == "" {
				return nil, fmt.Errorf("record %d: id must be a non-empty string", i)
			}
			doc.ID = strings.TrimSpace(id)
			delete(fields, "id")
		}
		if v, ok := fields["createdAt"]; ok {
			created, err := parseCreatedAt(v)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			doc.CreatedAt = created
			delete(fields, "createdAt")
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func parseCreatedAt(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case float64:
		return time.UnixMilli(int64(t)), nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("createdAt: %w", err)
		}
		return parsed, nil
	}
	return time.Time{}, errors.New("createdAt must be epoch milliseconds or RFC 3339 text")
}
