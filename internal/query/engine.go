package query

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/files"
	"github.com/docsage/backend/internal/intent"
	"github.com/docsage/backend/internal/metrics"
	"github.com/docsage/backend/internal/storage/models"
	"github.com/docsage/backend/internal/stream"
	"github.com/docsage/backend/internal/vector"
	"github.com/docsage/backend/pkg/logger"
)

// Failure taxonomy. None of these are fatal: every branch converts them
// into a degraded but valid response at its boundary.
var (
	ErrRetrieval      = errors.New("vector index unavailable")
	ErrDatastore      = errors.New("document store unavailable")
	ErrGeneration     = errors.New("generation failed")
	ErrClassification = errors.New("intent classification unavailable")
)

const apologyMessage = "I'm sorry, I ran into a problem while answering that. Please try again in a moment."

// DocumentStore is the read-only slice of the persistence layer this
// pipeline consumes.
type DocumentStore interface {
	Find(ctx context.Context, f models.DocumentFilter) ([]models.DocumentRecord, error)
	FindOne(ctx context.Context, f models.DocumentFilter) (*models.DocumentRecord, error)
}

// VectorIndex is the similarity-search collaborator.
type VectorIndex interface {
	Query(ctx context.Context, embedding []float32, topK int, f vector.Filter) ([]vector.Match, error)
}

// ModelService is the generative-model collaborator.
type ModelService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateStream(ctx context.Context, systemPrompt, userPrompt string) (stream.TokenStream, error)
}

// FileActionExecutor carries out recognized file-management commands.
type FileActionExecutor interface {
	Execute(ctx context.Context, command, userID string) (files.ActionResult, error)
}

// HistoryRecorder persists processed queries. Optional; best-effort.
type HistoryRecorder interface {
	InsertQueryRecord(ctx context.Context, record *models.QueryRecord) error
}

type Request struct {
	Query              string
	UserID             string
	ConversationID     string
	AttachedDocumentID string
}

// StreamChunk is one ordered text delta of the answer.
type StreamChunk struct {
	TextDelta string `json:"textDelta"`
}

// Sink receives chunks in emission order.
type Sink func(chunk StreamChunk)

type Source struct {
	DocumentName string  `json:"documentName"`
	PageNumber   int     `json:"pageNumber"`
	Score        float64 `json:"score"`
}

type Result struct {
	ID        string
	Intent    intent.Kind
	Sources   []Source
	Response  string
	LatencyMS int
}

// Engine routes one query to exactly one handling strategy and streams
// the answer through the response transformer. All collaborators are
// injected once at process start; the engine itself is stateless across
// queries.
type Engine struct {
	store    DocumentStore
	index    VectorIndex
	model    ModelService
	executor FileActionExecutor
	router   *intent.Router
	history  HistoryRecorder
	// refPattern locates the designated reference document for domain
	// enrichment (SQL LIKE pattern).
	refPattern string
}

func NewEngine(
	store DocumentStore,
	index VectorIndex,
	model ModelService,
	executor FileActionExecutor,
	router *intent.Router,
	history HistoryRecorder,
	refPattern string,
) *Engine {
	return &Engine{
		store:      store,
		index:      index,
		model:      model,
		executor:   executor,
		router:     router,
		history:    history,
		refPattern: refPattern,
	}
}

// ProcessQuery runs the full pipeline for one query. Chunks are forwarded
// to sink as they are produced; the returned Result carries the sources
// once the branch completes. The only error ever returned is the caller's
// own cancellation.
func (e *Engine) ProcessQuery(ctx context.Context, req Request, sink Sink) (*Result, error) {
	start := time.Now()
	queryID := uuid.New().String()

	docs, err := e.store.Find(ctx, models.DocumentFilter{OwnerID: req.UserID})
	if err != nil {
		// Fail open: routing proceeds with an empty corpus view.
		logger.Error("Document listing failed", zap.String("query_id", queryID), zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("datastore").Inc()
		docs = nil
	}

	cls := e.router.Classify(ctx, req.Query, docs)

	logger.Info("Query classified",
		zap.String("query_id", queryID),
		zap.String("intent", cls.Kind.String()),
		zap.String("user_id", req.UserID),
	)
	metrics.QueriesRouted.WithLabelValues(cls.Kind.String()).Inc()

	var full strings.Builder
	counted := func(chunk StreamChunk) {
		full.WriteString(chunk.TextDelta)
		metrics.StreamChunks.Inc()
		sink(chunk)
	}

	var sources []Source

	switch cls.Kind {
	case intent.KindFileAction:
		sources, err = e.handleFileAction(ctx, req, counted)
	case intent.KindComparison:
		sources, err = e.handleComparison(ctx, req, cls, counted)
	case intent.KindCounting:
		sources, err = e.handleCounting(ctx, req, cls, counted)
	case intent.KindTypes:
		sources, err = e.handleTypes(ctx, req, counted)
	case intent.KindListing:
		sources, err = e.handleListing(ctx, req, counted)
	case intent.KindMeta:
		sources, err = e.handleMeta(ctx, req, counted)
	case intent.KindRegular:
		sources, err = e.handleRegular(ctx, req, docs, counted)
	default:
		sources, err = e.handleRegular(ctx, req, docs, counted)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Branches degrade internally; an error surfacing here still must
		// not take the host down.
		logger.Error("Branch failed", zap.String("query_id", queryID), zap.Error(err))
	}

	metrics.BranchDuration.WithLabelValues(cls.Kind.String()).Observe(time.Since(start).Seconds())

	latency := int(time.Since(start).Milliseconds())
	result := &Result{
		ID:        queryID,
		Intent:    cls.Kind,
		Sources:   sources,
		Response:  full.String(),
		LatencyMS: latency,
	}

	e.recordHistory(ctx, req, result)

	return result, nil
}

// handleFileAction forwards the command to the executor and emits its
// message verbatim as the single chunk. No sources for this branch.
func (e *Engine) handleFileAction(ctx context.Context, req Request, sink Sink) ([]Source, error) {
	res, err := e.executor.Execute(ctx, req.Query, req.UserID)
	if err != nil {
		logger.Error("File action execution failed", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("file_action").Inc()
		sink(StreamChunk{TextDelta: apologyMessage})
		return []Source{}, nil
	}

	sink(StreamChunk{TextDelta: res.Message})
	return []Source{}, nil
}

// filterDeleted drops matches whose documents are soft-deleted or unknown.
// A store failure keeps the match set as-is: the same fail-open policy the
// vector index gets, so one flaky collaborator cannot zero out the other's
// results.
func (e *Engine) filterDeleted(ctx context.Context, ownerID string, matches []vector.Match) []vector.Match {
	if len(matches) == 0 {
		return matches
	}

	active, err := e.store.Find(ctx, models.DocumentFilter{OwnerID: ownerID})
	if err != nil {
		logger.Warn("Deleted-document filter unavailable, keeping matches", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("deleted_filter").Inc()
		return matches
	}

	activeIDs := make(map[string]bool, len(active))
	for _, d := range active {
		if d.Status != models.StatusDeleted {
			activeIDs[d.ID] = true
		}
	}

	kept := matches[:0]
	for _, m := range matches {
		if activeIDs[m.DocumentID] {
			kept = append(kept, m)
		}
	}
	return kept
}

// generateAndStream runs one generation and pipes it through the response
// transformer. Failures emit the fixed apology chunk and terminate the
// stream cleanly; only the caller's cancellation propagates.
func (e *Engine) generateAndStream(ctx context.Context, systemPrompt, userPrompt string, sink Sink) error {
	ts, err := e.model.GenerateStream(ctx, systemPrompt, userPrompt)
	if err != nil {
		logger.Error("Generation start failed", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("generation").Inc()
		sink(StreamChunk{TextDelta: apologyMessage})
		return nil
	}

	err = stream.Pipe(ctx, ts, func(delta string) {
		sink(StreamChunk{TextDelta: delta})
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Error("Generation stream failed", zap.Error(err))
		metrics.DegradedResponses.WithLabelValues("generation").Inc()
		sink(StreamChunk{TextDelta: apologyMessage})
	}
	return nil
}

func (e *Engine) recordHistory(ctx context.Context, req Request, result *Result) {
	if e.history == nil {
		return
	}

	record := &models.QueryRecord{
		ID:             result.ID,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		QueryText:      req.Query,
		Response:       result.Response,
		Intent:         result.Intent.String(),
		SourceCount:    len(result.Sources),
		LatencyMS:      result.LatencyMS,
		CreatedAt:      time.Now(),
	}

	if err := e.history.InsertQueryRecord(ctx, record); err != nil {
		logger.Warn("Failed to record query history", zap.Error(err))
	}
}

// buildContext renders matches into the generation context, each block
// tagged with its origin so citations can be traced.
func buildContext(matches []vector.Match) string {
	if len(matches) == 0 {
		return "No relevant passages were found in the user's documents."
	}

	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[Source: ")
		b.WriteString(m.Filename)
		b.WriteString(", Page: ")
		b.WriteString(strconv.Itoa(m.Page))
		b.WriteString("]\n")
		b.WriteString(m.Content)
	}
	return b.String()
}
