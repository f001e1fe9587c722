package workflow

import (
	"context"
	"strings"

	"clause-agent/prompts"

	"go.uber.org/zap"
)

// route classifies the turn against the four-option intent taxonomy and
// picks the branch. The per-turn candidate-product list is reset on entry
// so stale disambiguation state never leaks across intents.
func (e *Engine) route(ctx context.Context, state *State) {
	state.ensureProductData().MatchedProducts = []string{}

	result, err := e.llm.Generate(ctx, prompts.Router(state.EffectiveQuery()), prompts.RouterSystem(), 10, -1)
	if err != nil {
		e.fail(state, NodeEnd, errRouteFailed, err, msgApologyRetry)
		return
	}

	result = strings.TrimSpace(result)
	e.logger.Debug("Intent classified", zap.String("result", result))

	switch result {
	case "2":
		state.NextNode = NodeProductMatch
	case "3":
		state.NextNode = NodeKnowledge
	case "4":
		state.AppendAssistant(e.greetingReply(ctx, state.LastUserQuestion()))
		state.NextNode = NodeEnd
	default:
		// "1" and anything out of vocabulary: non-domain question
		state.AppendAssistant(msgRefusal)
		state.NextNode = NodeEnd
	}
}

// greetingReply generates a short pleasantry; on failure a canned apology
// stands in so the social turn still gets a reply.
func (e *Engine) greetingReply(ctx context.Context, content string) string {
	reply, err := e.llm.Generate(ctx, prompts.Greeting(content), prompts.GreetingSystem(), 50, -1)
	if err != nil {
		e.logger.Warn("Greeting generation failed", zap.Error(err))
		return msgApologyRetry
	}
	return strings.TrimSpace(reply)
}
