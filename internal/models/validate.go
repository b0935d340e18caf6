package models

import "fmt"

// ValidateChapters checks a caller-supplied chapter list before any chunking
// happens. A nil or empty list is valid (the whole book is labeled "full").
// Rejects empty names, non-positive page numbers, and end < start.
func ValidateChapters(chapters []ChapterSpec) error {
	for i, ch := range chapters {
		if ch.Name == "" {
			return fmt.Errorf("chapter %d: name is required", i)
		}
		if ch.StartPage < 1 {
			return fmt.Errorf("chapter %q: start_page must be >= 1, got %d", ch.Name, ch.StartPage)
		}
		if ch.EndPage < ch.StartPage {
			return fmt.Errorf("chapter %q: end_page %d is before start_page %d", ch.Name, ch.EndPage, ch.StartPage)
		}
	}
	return nil
}

// ChapterForPage returns the name of the first chapter spec whose page range
// contains page, or DefaultChapterName when none matches. List order is
// significant: overlapping ranges resolve to the earliest spec.
func ChapterForPage(chapters []ChapterSpec, page int) string {
	for _, ch := range chapters {
		if ch.StartPage <= page && page <= ch.EndPage {
			return ch.Name
		}
	}
	return DefaultChapterName
}
