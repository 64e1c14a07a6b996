package match

import (
	"strings"
	"unicode"

	"github.com/docsage/backend/internal/storage/models"
)

// knownExtensions are stripped from filenames before word matching.
// Compound extensions (.docx before .doc) are ordered longest first.
var knownExtensions = []string{
	".pptx", ".docx", ".xlsx", ".jpeg",
	".pdf", ".doc", ".xls", ".ppt", ".png", ".jpg", ".txt", ".csv", ".md",
}

// StripExtension removes one known trailing extension, case-insensitively.
func StripExtension(filename string) string {
	lower := strings.ToLower(filename)
	for _, ext := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			return filename[:len(filename)-len(ext)]
		}
	}
	return filename
}

// clean lowercases and drops every non-alphanumeric rune.
func clean(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// FilenameWords returns the cleaned, whitespace-delimited words of a
// filename with its extension stripped. Words that clean to nothing are
// dropped.
func FilenameWords(filename string) []string {
	fields := strings.Fields(StripExtension(filename))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := clean(f); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// IsMentioned reports whether the query informally refers to the filename:
// at least ceil(0.6 × wordCount) of the filename's words must appear as
// substrings of the cleaned query. A filename with zero usable words never
// matches.
func IsMentioned(query, filename string) bool {
	words := FilenameWords(filename)
	if len(words) == 0 {
		return false
	}

	cleanedQuery := clean(query)

	matched := 0
	for _, w := range words {
		if strings.Contains(cleanedQuery, w) {
			matched++
		}
	}

	// integer ceil(0.6 * n)
	threshold := (3*len(words) + 4) / 5
	return matched >= threshold
}

// MentionedDocuments returns the documents whose filenames the query
// mentions, preserving input order and dropping duplicate ids.
func MentionedDocuments(query string, docs []models.DocumentRecord) []models.DocumentRecord {
	seen := make(map[string]bool, len(docs))
	var matched []models.DocumentRecord
	for _, d := range docs {
		if seen[d.ID] {
			continue
		}
		if IsMentioned(query, d.Filename) {
			seen[d.ID] = true
			matched = append(matched, d)
		}
	}
	return matched
}
