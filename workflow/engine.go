package workflow

import (
	"context"
	"fmt"
	"time"

	"clause-agent/config"
	"clause-agent/observability"
	"clause-agent/retrieval"

	"go.uber.org/zap"
)

// maxSteps caps one turn's node dispatches; the longest legal path is five
// nodes, so hitting the cap means a transition-table bug.
const maxSteps = 16

// LLM is the completion capability consumed by the nodes.
type LLM interface {
	Generate(ctx context.Context, prompt, systemPrompt string, maxTokens int, temperature float64) (string, error)
}

// ProductMatcher resolves a product mention to canonical catalog names.
type ProductMatcher interface {
	Match(ctx context.Context, mention string, topK int) ([]string, error)
}

// Retriever produces the passages grounding the final answer.
type Retriever interface {
	Retrieve(ctx context.Context, query, productName string) ([]retrieval.Document, string, error)
}

// TermSource looks up controlled-vocabulary term definitions.
type TermSource interface {
	TermDefinitions(ctx context.Context, keyword string) ([]string, error)
}

type nodeFunc func(ctx context.Context, state *State)

// Engine executes the conversational state machine for one turn. All
// collaborators are injected so nodes can be exercised with test doubles.
type Engine struct {
	cfg       *config.Config
	llm       LLM
	matcher   ProductMatcher
	retriever Retriever
	terms     TermSource
	metrics   *observability.Metrics
	logger    *zap.Logger

	transitions map[Node]nodeFunc
}

func NewEngine(cfg *config.Config, llm LLM, matcher ProductMatcher, retriever Retriever, terms TermSource, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	e := &Engine{
		cfg:       cfg,
		llm:       llm,
		matcher:   matcher,
		retriever: retriever,
		terms:     terms,
		metrics:   metrics,
		logger:    logger,
	}
	e.transitions = map[Node]nodeFunc{
		NodeIntentRewriter: e.rewriteIntent,
		NodeRouter:         e.route,
		NodeProductMatch:   e.matchProduct,
		NodeProductSelect:  e.selectProduct,
		NodeRetrieve:       e.retrieve,
		NodeGenerate:       e.generate,
		NodeKnowledge:      e.answerKnowledge,
	}
	return e
}

// Run executes one turn, starting at the intent rewriter and dispatching
// the transition table until a node routes to end. Nodes never propagate
// failures; they record them on the state and produce a reply.
func (e *Engine) Run(ctx context.Context, state *State) error {
	start := time.Now()
	state.Error = ""
	state.NextNode = NodeIntentRewriter

	for step := 0; state.NextNode != NodeEnd; step++ {
		if step >= maxSteps {
			return fmt.Errorf("workflow exceeded %d steps at node %q", maxSteps, state.NextNode)
		}
		node, ok := e.transitions[state.NextNode]
		if !ok {
			return fmt.Errorf("no handler for node %q", state.NextNode)
		}

		state.CurrentNode = state.NextNode
		e.logger.Debug("Entering workflow node", zap.String("node", string(state.CurrentNode)))
		node(ctx, state)
	}

	e.metrics.ObserveTurn(string(state.CurrentNode), time.Since(start))
	e.logger.Info("Workflow turn complete",
		zap.String("terminal_node", string(state.CurrentNode)),
		zap.String("error", state.Error),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// fail records a node-local failure and the reply shown to the user.
func (e *Engine) fail(state *State, next Node, errFormat string, err error, reply string) {
	state.Error = fmt.Sprintf(errFormat, err)
	if reply != "" {
		state.AppendAssistant(reply)
	}
	state.NextNode = next
	e.metrics.CountNodeFailure(string(state.CurrentNode))
	e.logger.Warn("Workflow node failed",
		zap.String("node", string(state.CurrentNode)),
		zap.Error(err))
}
