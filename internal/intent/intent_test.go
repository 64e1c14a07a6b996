package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docsage/backend/internal/storage/models"
)

func corpus() []models.DocumentRecord {
	return []models.DocumentRecord{
		{ID: "d1", Filename: "Q1_Report.pdf", Status: models.StatusActive},
		{ID: "d2", Filename: "Q2_Report.pdf", Status: models.StatusActive},
		{ID: "d3", Filename: "budget.xlsx", Status: models.StatusActive},
	}
}

func newTestRouter() *Router {
	// Fallback that never claims anything, so only the regex stage and the
	// later branches are exercised.
	return NewRouter(&fakeClassifier{guess: Guess{Intent: "none", Confidence: 0}})
}

func TestClassifyPriorityTable(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter()

	tests := []struct {
		name  string
		query string
		want  Kind
	}{
		{"file action outranks everything", "delete the file Q1_Report.pdf", KindFileAction},
		{"comparison of two known documents", "compare Q1_Report and Q2_Report", KindComparison},
		{"counting with document keyword", "how many pdf files do I have", KindCounting},
		{"type breakdown", "what type of documents do I have", KindTypes},
		{"listing", "show my documents", KindListing},
		{"greeting is meta", "hello", KindMeta},
		{"identity question is meta", "who are you exactly?", KindMeta},
		{"capability question is meta", "what can you do", KindMeta},
		{"default is regular retrieval", "why did revenue drop in the second quarter?", KindRegular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Classify(ctx, tt.query, corpus())
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestClassifyComparison(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter()

	t.Run("two matched documents", func(t *testing.T) {
		got := r.Classify(ctx, "compare Q1_Report and Q2_Report", corpus())

		assert.Equal(t, KindComparison, got.Kind)
		assert.Len(t, got.Documents, 2)
		assert.Equal(t, "d1", got.Documents[0].ID)
		assert.Equal(t, "d2", got.Documents[1].ID)
	})

	t.Run("single matched document is not a comparison", func(t *testing.T) {
		got := r.Classify(ctx, "compare Q1_Report against last year", corpus())

		assert.NotEqual(t, KindComparison, got.Kind)
		assert.Equal(t, KindRegular, got.Kind)
	})

	t.Run("keyword without matched documents is not a comparison", func(t *testing.T) {
		got := r.Classify(ctx, "compare apples and oranges", corpus())

		assert.Equal(t, KindRegular, got.Kind)
	})

	t.Run("aspect extraction", func(t *testing.T) {
		got := r.Classify(ctx, "compare Q1_Report and Q2_Report in terms of revenue", corpus())

		assert.Equal(t, KindComparison, got.Kind)
		assert.Equal(t, "revenue", got.Aspect)
	})
}

func TestClassifyCounting(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter()

	t.Run("extension filter inferred", func(t *testing.T) {
		got := r.Classify(ctx, "how many pdf files do I have", corpus())

		assert.Equal(t, KindCounting, got.Kind)
		assert.Equal(t, ".pdf", got.FileExt)
	})

	t.Run("no filter without a type keyword", func(t *testing.T) {
		got := r.Classify(ctx, "how many documents do I have", corpus())

		assert.Equal(t, KindCounting, got.Kind)
		assert.Empty(t, got.FileExt)
	})

	t.Run("count keyword without document keyword is not counting", func(t *testing.T) {
		got := r.Classify(ctx, "how many dogs are there", corpus())

		assert.Equal(t, KindRegular, got.Kind)
	})
}

func TestClassifyStructuredNeedPossessive(t *testing.T) {
	ctx := context.Background()
	r := newTestRouter()

	// Document keyword present but nothing ties the question to the
	// user's corpus, so it falls through to retrieval.
	got := r.Classify(ctx, "what kind of file is a PDF", corpus())
	assert.Equal(t, KindRegular, got.Kind)

	got = r.Classify(ctx, "which documents mention churn", corpus())
	assert.Equal(t, KindRegular, got.Kind)
}

func TestClassifyFallbackErrorContinuesChain(t *testing.T) {
	ctx := context.Background()
	r := NewRouter(&fakeClassifier{err: assert.AnError})

	got := r.Classify(ctx, "how many reports do I have", corpus())

	assert.Equal(t, KindCounting, got.Kind)
}
