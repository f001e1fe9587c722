package workflow

import (
	"context"
	"strings"

	"clause-agent/prompts"

	"go.uber.org/zap"
)

// rewriteIntent rewrites the latest user question against the full dialogue
// history so follow-up turns carry their own context. The first turn needs
// no rewriting. Failures still continue to the router on the raw question.
func (e *Engine) rewriteIntent(ctx context.Context, state *State) {
	if len(state.Messages) <= 1 {
		state.NextNode = NodeRouter
		return
	}

	var history []string
	for _, msg := range state.Messages {
		role := "助手"
		if msg.Role == RoleUser {
			role = "用户"
		}
		history = append(history, role+"："+msg.Content)
	}

	rewritten, err := e.llm.Generate(ctx, prompts.Rewriter(strings.Join(history, "\n")), prompts.RewriterSystem(), 200, -1)
	if err != nil {
		e.fail(state, NodeRouter, errRewriteFailed, err, msgApologyRetry)
		return
	}

	rewritten = strings.TrimSpace(rewritten)
	state.ensureProductData().RewrittenQuestion = rewritten
	e.logger.Debug("Rewrote user question", zap.String("rewritten", rewritten))
	state.NextNode = NodeRouter
}
