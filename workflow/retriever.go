package workflow

import (
	"context"

	apperrors "clause-agent/errors"

	"go.uber.org/zap"
)

// retrieve resolves the product under query (when the matcher has not
// already done so) and fetches the grounding passages. An unresolvable
// product or an empty result set terminates the turn with the error set;
// the generator is only entered with passages in hand.
func (e *Engine) retrieve(ctx context.Context, state *State) {
	query := state.EffectiveQuery()

	productName := ""
	if state.ProductData != nil {
		productName = state.ProductData.ProductName
	}
	if productName == "" {
		extracted, err := e.extractProductName(ctx, query)
		if err != nil {
			e.fail(state, NodeEnd, errRetrieveFailed, err, "")
			return
		}
		productName = extracted
	}
	if productName == "" {
		state.Error = errNoProductName
		state.NextNode = NodeEnd
		return
	}

	docs, chunkType, err := e.retriever.Retrieve(ctx, query, productName)
	if err != nil {
		if apperrors.IsNoClausesFound(err) {
			state.Error = errNoClausesFound
			state.NextNode = NodeEnd
			return
		}
		e.fail(state, NodeEnd, errRetrieveFailed, err, "")
		return
	}

	state.ExtractedData = &ExtractedData{
		Query:         query,
		RetrievedDocs: docs,
		ProductName:   productName,
		ChunkType:     chunkType,
	}
	e.logger.Debug("Retrieval complete",
		zap.String("product", productName),
		zap.String("chunk_type", chunkType),
		zap.Int("documents", len(docs)))
	state.NextNode = NodeGenerate
}
