package workflow

import (
	"context"
	"fmt"
	"strings"

	"clause-agent/prompts"

	"go.uber.org/zap"
)

// answerKnowledge handles general insurance questions that are not tied to
// a catalog product. Keywords extracted from the question pull controlled
// term definitions into the prompt so the answer stays anchored in domain
// vocabulary; missing definitions degrade to an unanchored answer.
func (e *Engine) answerKnowledge(ctx context.Context, state *State) {
	question := state.EffectiveQuery()

	definitions := e.lookupDefinitions(ctx, question)

	answer, err := e.llm.Generate(ctx,
		prompts.Knowledge(question, strings.Join(definitions, "\n")),
		prompts.KnowledgeSystem(), 2000, -1)
	if err != nil {
		state.Error = fmt.Sprintf(errKnowledgeFailed, err)
		state.AppendAssistant(fmt.Sprintf(msgKnowledgeFailure, err))
		state.NextNode = NodeEnd
		e.metrics.CountNodeFailure(string(state.CurrentNode))
		return
	}

	state.AppendAssistant(strings.TrimSpace(answer))
	state.NextNode = NodeEnd
}

// lookupDefinitions extracts 3-5 keywords from the question and resolves
// each against the term glossary. Failures here are logged and swallowed;
// the knowledge answer proceeds without definitions.
func (e *Engine) lookupDefinitions(ctx context.Context, question string) []string {
	raw, err := e.llm.Generate(ctx, prompts.Keywords(question), prompts.KeywordsSystem(), 100, -1)
	if err != nil {
		e.logger.Warn("Keyword extraction failed", zap.Error(err))
		return nil
	}

	raw = strings.ReplaceAll(raw, "，", ",")

	var definitions []string
	for _, keyword := range strings.Split(raw, ",") {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		defs, err := e.terms.TermDefinitions(ctx, keyword)
		if err != nil {
			e.logger.Warn("Term definition lookup failed",
				zap.String("keyword", keyword), zap.Error(err))
			continue
		}
		for _, def := range defs {
			definitions = append(definitions, keyword+"："+def)
		}
	}
	return definitions
}
