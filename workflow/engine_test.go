package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"clause-agent/config"
	apperrors "clause-agent/errors"
	"clause-agent/prompts"
	"clause-agent/retrieval"

	"go.uber.org/zap"
)

// stubLLM answers each capability by its system prompt, recording the
// prompts it saw.
type stubLLM struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (s *stubLLM) Generate(ctx context.Context, prompt, systemPrompt string, maxTokens int, temperature float64) (string, error) {
	s.calls = append(s.calls, systemPrompt)
	if err, ok := s.errs[systemPrompt]; ok {
		return "", err
	}
	if response, ok := s.responses[systemPrompt]; ok {
		return response, nil
	}
	return "", fmt.Errorf("no scripted response for system prompt %q", systemPrompt)
}

func (s *stubLLM) sawSystemPrompt(systemPrompt string) bool {
	for _, call := range s.calls {
		if call == systemPrompt {
			return true
		}
	}
	return false
}

type stubMatcher struct {
	matches []string
	err     error
	mention string
	topK    int
}

func (s *stubMatcher) Match(ctx context.Context, mention string, topK int) ([]string, error) {
	s.mention = mention
	s.topK = topK
	return s.matches, s.err
}

type stubRetriever struct {
	docs        []retrieval.Document
	chunkType   string
	err         error
	called      bool
	productName string
}

func (s *stubRetriever) Retrieve(ctx context.Context, query, productName string) ([]retrieval.Document, string, error) {
	s.called = true
	s.productName = productName
	return s.docs, s.chunkType, s.err
}

type stubTerms struct {
	definitions map[string][]string
}

func (s *stubTerms) TermDefinitions(ctx context.Context, keyword string) ([]string, error) {
	return s.definitions[keyword], nil
}

func newTestEngine(llm *stubLLM, matcher *stubMatcher, retriever *stubRetriever, terms *stubTerms) *Engine {
	logger, _ := zap.NewDevelopment()
	if matcher == nil {
		matcher = &stubMatcher{}
	}
	if retriever == nil {
		retriever = &stubRetriever{}
	}
	if terms == nil {
		terms = &stubTerms{}
	}
	return NewEngine(&config.Config{}, llm, matcher, retriever, terms, nil, logger)
}

func runTurn(t *testing.T, e *Engine, state *State, question string) {
	t.Helper()
	state.AppendUser(question)
	if err := e.Run(context.Background(), state); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestGreetingTurn(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RouterSystem():   "4",
		prompts.GreetingSystem(): "你好呀，很高兴为你服务！",
	}}
	retriever := &stubRetriever{}
	e := newTestEngine(llm, nil, retriever, nil)

	state := NewState()
	runTurn(t, e, state, "谢谢")

	if got := state.LastAssistantReply(); got != "你好呀，很高兴为你服务！" {
		t.Errorf("reply = %q, want the generated greeting", got)
	}
	if retriever.called {
		t.Error("retriever invoked on a greeting turn")
	}
	if state.Error != "" {
		t.Errorf("state.Error = %q, want empty", state.Error)
	}
}

func TestUnrecognizedIntentRefused(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RouterSystem(): "今天天气不错",
	}}
	e := newTestEngine(llm, nil, nil, nil)

	state := NewState()
	runTurn(t, e, state, "今天股市怎么样")

	if got := state.LastAssistantReply(); got != msgRefusal {
		t.Errorf("reply = %q, want the refusal message", got)
	}
}

func TestSingleMatchReachesRetriever(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RouterSystem():         "2",
		prompts.ExtractProductSystem(): "平安福",
		prompts.GeneratorSystem():      "平安福的宽限期为60天。",
	}}
	matcher := &stubMatcher{matches: []string{"平安福"}}
	retriever := &stubRetriever{docs: []retrieval.Document{{Content: "宽限期60天"}}}
	e := newTestEngine(llm, matcher, retriever, nil)

	state := NewState()
	runTurn(t, e, state, "平安福的宽限期是多久")

	if !retriever.called {
		t.Fatal("retriever never invoked")
	}
	if retriever.productName != "平安福" {
		t.Errorf("retriever product = %q, want the matched name", retriever.productName)
	}
	if state.ProductData.ProductName != "平安福" {
		t.Errorf("ProductData.ProductName = %q, want 平安福", state.ProductData.ProductName)
	}
	if got := state.LastAssistantReply(); got != "平安福的宽限期为60天。" {
		t.Errorf("reply = %q, want the generated answer", got)
	}
}

func TestMultipleMatchesPromptSelection(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RouterSystem():         "2",
		prompts.ExtractProductSystem(): "平安福",
	}}
	matcher := &stubMatcher{matches: []string{"平安福A", "平安福B", "平安福C"}}
	retriever := &stubRetriever{}
	e := newTestEngine(llm, matcher, retriever, nil)

	state := NewState()
	runTurn(t, e, state, "我想了解平安福")

	reply := state.LastAssistantReply()
	if !strings.Contains(reply, "1. 平安福A\n2. 平安福B\n3. 平安福C") {
		t.Errorf("reply = %q, want the numbered candidate list", reply)
	}
	if retriever.called {
		t.Error("retriever invoked before disambiguation")
	}
	if !reflect.DeepEqual(state.MatchedProducts(), []string{"平安福A", "平安福B", "平安福C"}) {
		t.Errorf("MatchedProducts = %v, want the candidate list", state.MatchedProducts())
	}
}

func TestMatcherReceivesConfiguredTopK(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RouterSystem():         "2",
		prompts.ExtractProductSystem(): "平安福",
		prompts.GeneratorSystem():      "答案。",
	}}
	matcher := &stubMatcher{matches: []string{"平安福"}}
	retriever := &stubRetriever{docs: []retrieval.Document{{Content: "条款"}}}
	logger, _ := zap.NewDevelopment()
	e := NewEngine(&config.Config{FuzzyTopK: 1}, llm, matcher, retriever, &stubTerms{}, nil, logger)

	state := NewState()
	runTurn(t, e, state, "平安福的宽限期是多久")

	if matcher.topK != 1 {
		t.Errorf("matcher received topK = %d, want the configured 1", matcher.topK)
	}
}

func TestZeroMatchesFallBackToKnowledge(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RouterSystem():         "2",
		prompts.ExtractProductSystem(): "不存在的产品",
		prompts.KeywordsSystem():       "保险",
		prompts.KnowledgeSystem():      "保险是一种风险转移机制。",
	}}
	matcher := &stubMatcher{matches: nil}
	e := newTestEngine(llm, matcher, nil, nil)

	state := NewState()
	runTurn(t, e, state, "不存在的产品怎么样")

	if state.Error != errNoProductMatched {
		t.Errorf("state.Error = %q, want %q", state.Error, errNoProductMatched)
	}
	if got := state.LastAssistantReply(); got != "保险是一种风险转移机制。" {
		t.Errorf("reply = %q, want the knowledge answer", got)
	}
}

func TestNoClausesFoundSkipsGenerator(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RouterSystem():         "2",
		prompts.ExtractProductSystem(): "平安福",
	}}
	matcher := &stubMatcher{matches: []string{"平安福"}}
	retriever := &stubRetriever{err: apperrors.ErrNoClausesFound}
	e := newTestEngine(llm, matcher, retriever, nil)

	state := NewState()
	runTurn(t, e, state, "平安福的宽限期是多久")

	if state.Error != errNoClausesFound {
		t.Errorf("state.Error = %q, want %q", state.Error, errNoClausesFound)
	}
	if llm.sawSystemPrompt(prompts.GeneratorSystem()) {
		t.Error("generator invoked despite empty retrieval")
	}
	if got := state.LastAssistantReply(); got != "" {
		t.Errorf("reply = %q, want no reply on a terminal retrieval error", got)
	}
}

func TestRouterResetsMatchedProducts(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RouterSystem():   "4",
		prompts.GreetingSystem(): "你好！",
		prompts.RewriterSystem(): "谢谢",
	}}
	e := newTestEngine(llm, nil, nil, nil)

	state := NewState()
	state.ensureProductData().MatchedProducts = []string{"旧产品A", "旧产品B"}
	state.AppendUser("我想了解平安福")
	state.AppendAssistant("请选择产品")
	runTurn(t, e, state, "谢谢")

	if got := state.MatchedProducts(); len(got) != 0 {
		t.Errorf("MatchedProducts = %v, want reset to empty", got)
	}
}

func TestRewriterSkippedOnFirstTurn(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RouterSystem(): "1",
	}}
	e := newTestEngine(llm, nil, nil, nil)

	state := NewState()
	runTurn(t, e, state, "今天天气怎么样")

	if llm.sawSystemPrompt(prompts.RewriterSystem()) {
		t.Error("rewriter invoked on a single-message conversation")
	}
}

func TestRewrittenQuestionDrivesRouting(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		prompts.RewriterSystem():  "平安福的等待期是多久",
		prompts.RouterSystem():    "3",
		prompts.KeywordsSystem():  "等待期",
		prompts.KnowledgeSystem(): "等待期是保险合同生效后的观察期。",
	}}
	terms := &stubTerms{definitions: map[string][]string{
		"等待期": {"保险合同生效后的一段观察期间"},
	}}
	e := newTestEngine(llm, nil, nil, terms)

	state := NewState()
	state.AppendUser("平安福怎么样")
	state.AppendAssistant("平安福是一款终身寿险。")
	runTurn(t, e, state, "那等待期呢")

	if !llm.sawSystemPrompt(prompts.RewriterSystem()) {
		t.Fatal("rewriter not invoked on a multi-turn conversation")
	}
	if state.ProductData.RewrittenQuestion != "平安福的等待期是多久" {
		t.Errorf("RewrittenQuestion = %q, want the rewriter output", state.ProductData.RewrittenQuestion)
	}
	if got := state.LastAssistantReply(); got != "等待期是保险合同生效后的观察期。" {
		t.Errorf("reply = %q, want the knowledge answer", got)
	}
}

func TestRouterFailureApologizes(t *testing.T) {
	llm := &stubLLM{
		responses: map[string]string{},
		errs:      map[string]error{prompts.RouterSystem(): errors.New("completion down")},
	}
	e := newTestEngine(llm, nil, nil, nil)

	state := NewState()
	runTurn(t, e, state, "平安福怎么样")

	if state.Error == "" {
		t.Error("state.Error empty after router failure")
	}
	if got := state.LastAssistantReply(); got != msgApologyRetry {
		t.Errorf("reply = %q, want the apology", got)
	}
}

func TestKnowledgeFailureReportsError(t *testing.T) {
	llm := &stubLLM{
		responses: map[string]string{
			prompts.RouterSystem():   "3",
			prompts.KeywordsSystem(): "保险",
		},
		errs: map[string]error{prompts.KnowledgeSystem(): errors.New("completion down")},
	}
	e := newTestEngine(llm, nil, nil, nil)

	state := NewState()
	runTurn(t, e, state, "什么是保险")

	if state.Error == "" {
		t.Error("state.Error empty after knowledge failure")
	}
	if !strings.Contains(state.LastAssistantReply(), "很抱歉，处理您的问题时出现错误") {
		t.Errorf("reply = %q, want the knowledge failure message", state.LastAssistantReply())
	}
}
