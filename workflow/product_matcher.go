package workflow

import (
	"context"
	"fmt"
	"strings"

	"clause-agent/prompts"

	"go.uber.org/zap"
)

// matchProduct extracts the product mention from the query and resolves it
// against the catalog. One match proceeds straight to retrieval, several go
// to disambiguation, none falls back to general knowledge.
func (e *Engine) matchProduct(ctx context.Context, state *State) {
	query := state.EffectiveQuery()

	mention, err := e.extractProductName(ctx, query)
	if err != nil {
		e.fail(state, NodeKnowledge, errMatchFailed, err, "")
		return
	}
	if mention == "" {
		state.Error = errNoProductMatched
		state.NextNode = NodeKnowledge
		return
	}

	// Match falls back to its own default when the knob is unset.
	matched, err := e.matcher.Match(ctx, mention, e.cfg.FuzzyTopK)
	if err != nil {
		e.fail(state, NodeKnowledge, errMatchFailed, err, "")
		return
	}
	e.logger.Debug("Fuzzy matched products",
		zap.String("mention", mention),
		zap.Int("count", len(matched)))

	pd := state.ensureProductData()
	switch {
	case len(matched) == 1:
		pd.ProductName = matched[0]
		state.NextNode = NodeRetrieve
	case len(matched) > 1:
		pd.MatchedProducts = matched
		pd.Query = query
		state.NextNode = NodeProductSelect
	default:
		state.Error = errNoProductMatched
		state.NextNode = NodeKnowledge
	}
}

// selectProduct shows the numbered candidate list and ends the turn; the
// user's pick arrives as the next turn.
func (e *Engine) selectProduct(ctx context.Context, state *State) {
	matched := state.MatchedProducts()
	if len(matched) == 0 {
		state.Error = fmt.Sprintf(errSelectFailed, "没有找到匹配的产品列表")
		state.NextNode = NodeKnowledge
		return
	}

	var list []string
	for i, product := range matched {
		list = append(list, fmt.Sprintf("%d. %s", i+1, product))
	}
	state.AppendAssistant(fmt.Sprintf(selectorPrompt, len(matched), strings.Join(list, "\n"), len(matched)))
	state.NextNode = NodeEnd
}

// extractProductName pulls the product mention out of the question via the
// completion capability; "无" means no product was mentioned.
func (e *Engine) extractProductName(ctx context.Context, query string) (string, error) {
	result, err := e.llm.Generate(ctx, prompts.ExtractProduct(query), prompts.ExtractProductSystem(), 50, -1)
	if err != nil {
		return "", err
	}
	result = strings.TrimSpace(result)
	if result == "无" {
		return "", nil
	}
	return result, nil
}
