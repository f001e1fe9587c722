package workflow

import (
	"context"
	"strings"

	"clause-agent/prompts"

	"go.uber.org/zap"
)

// generate composes the grounded answer from the retrieved passages. With
// nothing retrieved the turn closes with a canned no-information reply
// rather than letting the model answer unanchored.
func (e *Engine) generate(ctx context.Context, state *State) {
	if state.ExtractedData == nil || len(state.ExtractedData.RetrievedDocs) == 0 {
		state.AppendAssistant(msgNoClauseInfo)
		state.NextNode = NodeEnd
		return
	}

	question := state.EffectiveQuery()
	if question == "" {
		question = state.ExtractedData.Query
	}

	parts := make([]string, 0, len(state.ExtractedData.RetrievedDocs))
	for _, doc := range state.ExtractedData.RetrievedDocs {
		parts = append(parts, doc.Content)
	}
	clauseContext := strings.Join(parts, "\n")

	answer, err := e.llm.Generate(ctx,
		prompts.Generator(state.ExtractedData.ProductName, question, clauseContext),
		prompts.GeneratorSystem(), 2000, -1)
	if err != nil {
		e.fail(state, NodeEnd, errGenerateFailed, err, msgApologyRetry)
		return
	}

	e.logger.Debug("Answer generated",
		zap.String("product", state.ExtractedData.ProductName),
		zap.Int("passages", len(parts)))
	state.AppendAssistant(strings.TrimSpace(answer))
	state.NextNode = NodeEnd
}
