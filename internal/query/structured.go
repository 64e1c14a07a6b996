package query

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/docsage/backend/internal/intent"
	"github.com/docsage/backend/internal/metrics"
	"github.com/docsage/backend/internal/storage/models"
	"github.com/docsage/backend/pkg/logger"
)

// handleCounting answers "how many ..." questions straight from the store,
// optionally narrowed to one file extension.
func (e *Engine) handleCounting(ctx context.Context, req Request, cls intent.Classification, sink Sink) ([]Source, error) {
	filter := models.DocumentFilter{OwnerID: req.UserID, NameSuffix: cls.FileExt}

	docs, err := e.store.Find(ctx, filter)
	if err != nil {
		logger.Error("Counting query failed", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("datastore").Inc()
		sink(StreamChunk{TextDelta: apologyMessage})
		return []Source{}, nil
	}

	label := typeLabel(cls.FileExt)

	var b strings.Builder
	switch {
	case len(docs) == 0 && cls.FileExt != "":
		fmt.Fprintf(&b, "You don't have any %s documents yet.", label)
	case len(docs) == 0:
		b.WriteString("You don't have any documents yet.")
	case cls.FileExt != "":
		fmt.Fprintf(&b, "You have %d %s %s:\n\n", len(docs), label, pluralize("document", len(docs)))
		writeDocumentList(&b, docs)
	default:
		fmt.Fprintf(&b, "You have %d %s:\n\n", len(docs), pluralize("document", len(docs)))
		writeDocumentList(&b, docs)
	}
	b.WriteString("\n\n")
	if len(docs) == 0 {
		b.WriteString("Next step: Upload a document and ask me about it.")
	} else {
		b.WriteString("Next step: Ask me to summarize or compare any of them.")
	}

	sink(StreamChunk{TextDelta: b.String()})
	return structuredSources(docs), nil
}

// handleTypes groups the corpus by file extension, largest group first.
func (e *Engine) handleTypes(ctx context.Context, req Request, sink Sink) ([]Source, error) {
	docs, err := e.store.Find(ctx, models.DocumentFilter{OwnerID: req.UserID})
	if err != nil {
		logger.Error("Type breakdown query failed", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("datastore").Inc()
		sink(StreamChunk{TextDelta: apologyMessage})
		return []Source{}, nil
	}

	if len(docs) == 0 {
		sink(StreamChunk{TextDelta: "You don't have any documents yet.\n\nNext step: Upload a document and ask me about it."})
		return []Source{}, nil
	}

	groups := make(map[string][]string)
	for _, d := range docs {
		ext := strings.ToLower(filepath.Ext(d.Filename))
		key := "other"
		if ext != "" {
			key = strings.ToUpper(strings.TrimPrefix(ext, "."))
		}
		groups[key] = append(groups[key], d.Filename)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(groups[keys[i]]) != len(groups[keys[j]]) {
			return len(groups[keys[i]]) > len(groups[keys[j]])
		}
		return keys[i] < keys[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Here's the breakdown of your %d %s by type:\n\n", len(docs), pluralize("document", len(docs)))
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s (%d): %s\n", k, len(groups[k]), strings.Join(groups[k], ", "))
	}
	b.WriteString("\nNext step: Ask me about any of these documents.")

	sink(StreamChunk{TextDelta: b.String()})
	return structuredSources(docs), nil
}

// handleListing enumerates the corpus newest first.
func (e *Engine) handleListing(ctx context.Context, req Request, sink Sink) ([]Source, error) {
	docs, err := e.store.Find(ctx, models.DocumentFilter{OwnerID: req.UserID})
	if err != nil {
		logger.Error("Listing query failed", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("datastore").Inc()
		sink(StreamChunk{TextDelta: apologyMessage})
		return []Source{}, nil
	}

	if len(docs) == 0 {
		sink(StreamChunk{TextDelta: "You don't have any documents yet.\n\nNext step: Upload a document and ask me about it."})
		return []Source{}, nil
	}

	// The store already orders by upload time; re-sort so the contract
	// holds regardless of backing implementation.
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d %s:\n\n", len(docs), pluralize("document", len(docs)))
	writeDocumentList(&b, docs)
	b.WriteString("\n\nNext step: Ask me to summarize or compare any of them.")

	sink(StreamChunk{TextDelta: b.String()})
	return structuredSources(docs), nil
}

func writeDocumentList(b *strings.Builder, docs []models.DocumentRecord) {
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(d.Filename)
	}
}

// structuredSources marks every enumerated document as an exact-knowledge
// source: full confidence, no page.
func structuredSources(docs []models.DocumentRecord) []Source {
	sources := make([]Source, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, Source{
			DocumentName: d.Filename,
			PageNumber:   0,
			Score:        1.0,
		})
	}
	return sources
}

func typeLabel(ext string) string {
	return strings.ToUpper(strings.TrimPrefix(ext, "."))
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
