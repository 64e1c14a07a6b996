package query

import "context"

// handleMeta answers questions about the assistant itself. No retrieval.
func (e *Engine) handleMeta(ctx context.Context, req Request, sink Sink) ([]Source, error) {
	if err := e.generateAndStream(ctx, metaSystemPrompt, req.Query, sink); err != nil {
		return []Source{}, err
	}
	return []Source{}, nil
}
