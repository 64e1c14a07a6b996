package query

import (
	"context"
	"strings"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/match"
	"github.com/docsage/backend/internal/metrics"
	"github.com/docsage/backend/internal/storage/models"
	"github.com/docsage/backend/internal/vector"
	"github.com/docsage/backend/pkg/logger"
)

const (
	scopedTopK = 5
	globalTopK = 20
	enrichTopK = 3
)

// stopWords are dropped before the query's tokens are matched against
// filenames, so "what does the report say" resolves on "report" alone.
// Bare extension tokens are stop words too: "the pdf" is a category,
// not a name, and must not pin retrieval to one document.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "about": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "can": {}, "did": {}, "do": {}, "does": {}, "for": {},
	"from": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {},
	"me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "say": {}, "says": {},
	"tell": {}, "the": {}, "this": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "with": {},
	"you": {}, "your": {},
	"pdf": {}, "pdfs": {}, "doc": {}, "docs": {}, "docx": {}, "txt": {},
	"csv": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {}, "md": {},
	"png": {}, "jpg": {}, "jpeg": {},
}

// domainTriggers activate the reference-document enrichment pass.
var domainTriggers = []string{
	"behavior", "behaviour", "behavioral", "behavioural", "psychology",
	"psychological", "cognitive", "bias", "biases", "motivation", "habit",
	"habits", "emotion", "emotional", "personality", "mindset",
}

// handleRegular is the default retrieval-augmented path: embed the query,
// resolve any documents it names, run the scoped or global similarity
// search, then synthesize from the surviving passages.
func (e *Engine) handleRegular(ctx context.Context, req Request, docs []models.DocumentRecord, sink Sink) ([]Source, error) {
	embedding, err := e.model.Embed(ctx, req.Query)
	if err != nil {
		logger.Error("Query embedding failed", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("retrieval").Inc()
		sink(StreamChunk{TextDelta: apologyMessage})
		return []Source{}, nil
	}

	matches := e.retrieveMatches(ctx, req, docs, embedding)
	matches = e.filterDeleted(ctx, req.UserID, matches)
	matches = append(matches, e.enrichMatches(ctx, req, embedding)...)
	metrics.VectorResults.Observe(float64(len(matches)))

	sources := retrievalSources(matches)

	userPrompt := regularUserPrompt(req.Query, matches)
	if err := e.generateAndStream(ctx, regularSystemPrompt, userPrompt, sink); err != nil {
		return sources, err
	}
	return sources, nil
}

// retrieveMatches picks the narrowest applicable scope: documents named in
// the query, then the attached document, then the whole corpus. Index
// failures degrade to an empty set.
func (e *Engine) retrieveMatches(ctx context.Context, req Request, docs []models.DocumentRecord, embedding []float32) []vector.Match {
	resolved := match.MentionedDocuments(significantTokens(req.Query), docs)

	if len(resolved) > 0 {
		var all []vector.Match
		for _, doc := range resolved {
			m, err := e.index.Query(ctx, embedding, scopedTopK, vector.Filter{
				OwnerID:    req.UserID,
				DocumentID: doc.ID,
			})
			if err != nil {
				logger.Warn("Scoped retrieval failed",
					zap.String("document_id", doc.ID), zap.Error(err))
				metrics.DegradedResponses.WithLabelValues("retrieval").Inc()
				continue
			}
			all = append(all, m...)
		}
		return all
	}

	filter := vector.Filter{OwnerID: req.UserID}
	if req.AttachedDocumentID != "" {
		filter.DocumentID = req.AttachedDocumentID
	}

	m, err := e.index.Query(ctx, embedding, globalTopK, filter)
	if err != nil {
		logger.Warn("Retrieval failed", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("retrieval").Inc()
		return nil
	}
	return m
}

// enrichMatches pulls a few passages from the designated reference document
// when the query touches its subject area. Entirely best-effort: any
// failure, or no reference document, just skips the pass.
func (e *Engine) enrichMatches(ctx context.Context, req Request, embedding []float32) []vector.Match {
	if e.refPattern == "" || !containsAnyWord(strings.ToLower(req.Query), domainTriggers) {
		return nil
	}

	ref, err := e.store.FindOne(ctx, models.DocumentFilter{
		OwnerID:     req.UserID,
		NamePattern: e.refPattern,
	})
	if err != nil {
		logger.Debug("Reference document lookup failed", zap.Error(err))
		return nil
	}

	m, err := e.index.Query(ctx, embedding, enrichTopK, vector.Filter{
		OwnerID:    req.UserID,
		DocumentID: ref.ID,
	})
	if err != nil {
		logger.Warn("Reference enrichment failed", zap.Error(err))
		return nil
	}
	return m
}

// significantTokens tokenizes the query and drops stop words, returning
// the remainder as one space-joined string for filename matching.
func significantTokens(query string) string {
	var words []string

	doc, err := prose.NewDocument(query, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		logger.Warn("Tokenization failed, falling back to whitespace split", zap.Error(err))
		words = strings.Fields(query)
	} else {
		for _, tok := range doc.Tokens() {
			words = append(words, tok.Text)
		}
	}

	kept := make([]string, 0, len(words))
	for _, w := range words {
		lw := strings.ToLower(w)
		if _, stop := stopWords[lw]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func containsAnyWord(text string, words []string) bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// retrievalSources dedupes matches into one source per filename and page.
func retrievalSources(matches []vector.Match) []Source {
	type key struct {
		name string
		page int
	}
	seen := make(map[key]bool, len(matches))
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		k := key{m.Filename, m.Page}
		if seen[k] {
			continue
		}
		seen[k] = true
		sources = append(sources, Source{
			DocumentName: m.Filename,
			PageNumber:   m.Page,
			Score:        m.Score,
		})
	}
	return sources
}
