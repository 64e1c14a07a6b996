package stream

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyIdentity(t *testing.T) {
	tr := NewTransformer()

	deltas := []string{
		"The revenue grew by 12% quarter over quarter.",
		"plain text with (parentheses, but no citation)",
		"**bold** and *italic* markers survive",
		"line one\nline two",
		"",
	}

	for _, d := range deltas {
		assert.Equal(t, d, tr.Apply(d), "delta %q must pass through unchanged", d)
	}
}

func TestApplyStripsCitations(t *testing.T) {
	tr := NewTransformer()

	tests := []struct {
		in   string
		want string
	}{
		{"Revenue fell (Q1_Report.pdf, Page: 3) in March.", "Revenue fell  in March."},
		{"See the summary (budget.xlsx, Page 12).", "See the summary ."},
		{"(notes.docx, page: 1)", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Apply(tt.in))
	}
}

func TestApplyBulletSpacing(t *testing.T) {
	tr := NewTransformer()

	t.Run("blank line inserted after colon before bullet", func(t *testing.T) {
		in := "Key points:\n- first\n- second"
		want := "Key points:\n\n- first\n- second"
		assert.Equal(t, want, tr.Apply(in))
	})

	t.Run("blank lines between bullets collapsed", func(t *testing.T) {
		in := "- first\n\n- second\n\n- third"
		want := "- first\n- second\n- third"
		assert.Equal(t, want, tr.Apply(in))
	})

	t.Run("paragraph break before Next step footer", func(t *testing.T) {
		in := "- last bullet\nNext step: upload more documents."
		want := "- last bullet\n\nNext step: upload more documents."
		assert.Equal(t, want, tr.Apply(in))
	})

	t.Run("capitalized sentence after bullet run starts a paragraph", func(t *testing.T) {
		in := "- one\n- two\nOverall the trend is positive."
		want := "- one\n- two\n\nOverall the trend is positive."
		assert.Equal(t, want, tr.Apply(in))
	})
}

func TestApplyCollapsesNewlinesAndBold(t *testing.T) {
	tr := NewTransformer()

	assert.Equal(t, "a\n\nb", tr.Apply("a\n\n\n\nb"))
	assert.Equal(t, "**strong**", tr.Apply("****strong****"))
}

func TestApplyStripsEmoji(t *testing.T) {
	tr := NewTransformer()

	assert.Equal(t, "Done ", tr.Apply("Done ✅"))
	assert.Equal(t, " Launch", tr.Apply("🚀 Launch"))
	assert.Equal(t, "fine", tr.Apply("fine"))
}

type scriptedStream struct {
	deltas []string
	err    error
	pos    int
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

func (s *scriptedStream) Close() { s.closed = true }

func TestPipeForwardsInOrder(t *testing.T) {
	ts := &scriptedStream{deltas: []string{"Hello", " ", "world"}}

	var got []string
	err := Pipe(context.Background(), ts, func(d string) { got = append(got, d) })

	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " ", "world"}, got)
	assert.True(t, ts.closed)
}

func TestPipePropagatesStreamError(t *testing.T) {
	ts := &scriptedStream{deltas: []string{"partial"}, err: assert.AnError}

	var got []string
	err := Pipe(context.Background(), ts, func(d string) { got = append(got, d) })

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"partial"}, got)
	assert.True(t, ts.closed)
}

func TestPipeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ts := &scriptedStream{deltas: []string{"never"}}

	err := Pipe(ctx, ts, func(string) { t.Fatal("sink must not be called after cancel") })

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, ts.closed)
}

func TestPipeDropsEmptyTransformedDeltas(t *testing.T) {
	ts := &scriptedStream{deltas: []string{"🚀", "text"}}

	var got []string
	err := Pipe(context.Background(), ts, func(d string) { got = append(got, d) })

	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, got)
}
