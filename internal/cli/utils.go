// Package cli provides output formatting for the mcqgen command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gk6450/mcq-gen/internal/models"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteRetrievedChunks writes retrieval results to w in the given format.
func WriteRetrievedChunks(w io.Writer, chunks []models.RetrievedChunk, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"chunks": chunks})
	}
	if len(chunks) == 0 {
		fmt.Fprintln(w, "No matching chunks.")
		return nil
	}
	fmt.Fprintf(w, "\nFound %d chunks\n\n", len(chunks))
	for i, ch := range chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Chapter: %s | Page: %d\n", i+1, ch.Score, ch.ChapterName, ch.Page)
		fmt.Fprintf(w, "ID: %s\n", ch.ChunkID)
		fmt.Fprintf(w, "\n%s\n\n", Truncate(ch.FullText, 300))
	}
	return nil
}

// WriteBooks writes a book listing to w in the given format.
func WriteBooks(w io.Writer, books []*models.Book, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"books": books})
	}
	if len(books) == 0 {
		fmt.Fprintln(w, "No books.")
		return nil
	}
	for _, b := range books {
		fmt.Fprintf(w, "%s  chunks=%d  active=%t  %s\n", b.BookID, b.InsertedChunks, b.Active, b.Title)
	}
	return nil
}

// WriteChapters writes a chapter listing to w in the given format.
func WriteChapters(w io.Writer, bookID string, chapters []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"book_id": bookID, "chapters": chapters})
	}
	if len(chapters) == 0 {
		fmt.Fprintln(w, "No chapters.")
		return nil
	}
	for _, ch := range chapters {
		fmt.Fprintln(w, ch)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
