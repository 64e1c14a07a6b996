package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docsage/backend/internal/intent"
	"github.com/docsage/backend/internal/metrics"
	"github.com/docsage/backend/internal/storage/models"
	"github.com/docsage/backend/internal/vector"
	"github.com/docsage/backend/pkg/logger"
)

const (
	comparisonTopK    = 5
	comparisonWorkers = 4
)

// handleComparison retrieves the top chunks of every requested document in
// parallel and synthesizes a structured comparison. The source list always
// covers every requested document: a document whose retrieval produced
// nothing is represented by a zero-score placeholder so the caller can see
// it was considered.
func (e *Engine) handleComparison(ctx context.Context, req Request, cls intent.Classification, sink Sink) ([]Source, error) {
	embedding, err := e.model.Embed(ctx, req.Query)
	if err != nil {
		logger.Error("Comparison embedding failed", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("retrieval").Inc()
		sink(StreamChunk{TextDelta: apologyMessage})
		return placeholderSources(cls.Documents), nil
	}

	perDoc := make([][]vector.Match, len(cls.Documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(comparisonWorkers)
	for i, doc := range cls.Documents {
		i, doc := i, doc
		g.Go(func() error {
			matches, err := e.index.Query(gctx, embedding, comparisonTopK, vector.Filter{
				OwnerID:    req.UserID,
				DocumentID: doc.ID,
			})
			if err != nil {
				// One unreachable document must not sink the comparison.
				logger.Warn("Comparison retrieval failed for document",
					zap.String("document_id", doc.ID),
					zap.String("filename", doc.Filename),
					zap.Error(err),
				)
				metrics.DegradedResponses.WithLabelValues("retrieval").Inc()
				return nil
			}
			perDoc[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return placeholderSources(cls.Documents), err
	}

	var all []vector.Match
	for _, matches := range perDoc {
		all = append(all, matches...)
	}
	all = e.filterDeleted(ctx, req.UserID, all)
	metrics.VectorResults.Observe(float64(len(all)))

	sources := comparisonSources(cls.Documents, all)

	userPrompt := comparisonUserPrompt(req.Query, cls, all)
	if err := e.generateAndStream(ctx, comparisonSystemPrompt, userPrompt, sink); err != nil {
		return sources, err
	}
	return sources, nil
}

// comparisonSources dedupes by filename, best match first, then appends a
// placeholder for every requested document that produced no match.
func comparisonSources(requested []models.DocumentRecord, matches []vector.Match) []Source {
	seen := make(map[string]bool, len(requested))
	sources := make([]Source, 0, len(requested))

	for _, m := range matches {
		if seen[m.Filename] {
			continue
		}
		seen[m.Filename] = true
		sources = append(sources, Source{
			DocumentName: m.Filename,
			PageNumber:   m.Page,
			Score:        m.Score,
		})
	}

	for _, doc := range requested {
		if seen[doc.Filename] {
			continue
		}
		seen[doc.Filename] = true
		sources = append(sources, Source{DocumentName: doc.Filename})
	}

	return sources
}

func placeholderSources(requested []models.DocumentRecord) []Source {
	sources := make([]Source, 0, len(requested))
	for _, doc := range requested {
		sources = append(sources, Source{DocumentName: doc.Filename})
	}
	return sources
}

func comparisonUserPrompt(query string, cls intent.Classification, matches []vector.Match) string {
	names := make([]string, 0, len(cls.Documents))
	for _, doc := range cls.Documents {
		names = append(names, doc.Filename)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Compare the following documents: %s.\n", strings.Join(names, ", "))
	if cls.Aspect != "" {
		fmt.Fprintf(&b, "Focus the comparison on: %s.\n", cls.Aspect)
	}
	b.WriteString("\nUser question:\n")
	b.WriteString(query)
	b.WriteString("\n\nRetrieved passages:\n")
	b.WriteString(buildContext(matches))
	return b.String()
}
