// Package workflow sequences intent rewriting, routing, product
// identification, retrieval and answer generation across multi-turn
// conversations.
package workflow

import "clause-agent/retrieval"

// Node labels the states of the conversational workflow.
type Node string

const (
	NodeIntentRewriter Node = "intent_rewriter"
	NodeRouter         Node = "router"
	NodeProductMatch   Node = "product_match"
	NodeProductSelect  Node = "product_select"
	NodeRetrieve       Node = "retrieve"
	NodeGenerate       Node = "generate"
	NodeKnowledge      Node = "knowledge"
	NodeEnd            Node = "end"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ProductData holds the transient per-turn product resolution fields.
type ProductData struct {
	RewrittenQuestion string   `json:"rewritten_question,omitempty"`
	MatchedProducts   []string `json:"matched_products"`
	ProductName       string   `json:"product_name,omitempty"`
	Query             string   `json:"query,omitempty"`
}

// ExtractedData holds the retrieval results for the current turn.
type ExtractedData struct {
	Query         string               `json:"query"`
	RetrievedDocs []retrieval.Document `json:"retrieved_docs"`
	ProductName   string               `json:"product_name,omitempty"`
	ChunkType     string               `json:"chunk_type,omitempty"`
}

// State is the conversation state threaded through every node. Messages is
// append-only; it is never reordered or truncated.
type State struct {
	Messages      []Message      `json:"messages"`
	ProductData   *ProductData   `json:"product_data,omitempty"`
	ExtractedData *ExtractedData `json:"extracted_data,omitempty"`
	Error         string         `json:"error,omitempty"`
	CurrentNode   Node           `json:"current_node,omitempty"`
	NextNode      Node           `json:"next_node,omitempty"`
}

// NewState returns an empty conversation state.
func NewState() *State {
	return &State{
		Messages:    []Message{},
		ProductData: &ProductData{MatchedProducts: []string{}},
	}
}

// Clone returns a deep copy, letting the session store hand out state by
// value for the duration of a turn.
func (s *State) Clone() *State {
	clone := &State{
		Error:       s.Error,
		CurrentNode: s.CurrentNode,
		NextNode:    s.NextNode,
	}
	clone.Messages = append([]Message(nil), s.Messages...)
	if s.ProductData != nil {
		pd := *s.ProductData
		pd.MatchedProducts = append([]string(nil), s.ProductData.MatchedProducts...)
		clone.ProductData = &pd
	}
	if s.ExtractedData != nil {
		ed := *s.ExtractedData
		ed.RetrievedDocs = append([]retrieval.Document(nil), s.ExtractedData.RetrievedDocs...)
		clone.ExtractedData = &ed
	}
	return clone
}

// ensureProductData lazily allocates the per-turn product fields.
func (s *State) ensureProductData() *ProductData {
	if s.ProductData == nil {
		s.ProductData = &ProductData{MatchedProducts: []string{}}
	}
	return s.ProductData
}

// AppendUser appends a user turn.
func (s *State) AppendUser(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: content})
}

// AppendAssistant appends an assistant reply.
func (s *State) AppendAssistant(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: content})
}

// LastUserQuestion returns the content of the most recent user message.
func (s *State) LastUserQuestion() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastAssistantReply returns the content of the most recent assistant
// message, or "" when the turn produced none.
func (s *State) LastAssistantReply() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// EffectiveQuery prefers the rewritten question over the raw last user turn.
func (s *State) EffectiveQuery() string {
	if s.ProductData != nil && s.ProductData.RewrittenQuestion != "" {
		return s.ProductData.RewrittenQuestion
	}
	return s.LastUserQuestion()
}

// MatchedProducts returns the per-turn candidate product list.
func (s *State) MatchedProducts() []string {
	if s.ProductData == nil {
		return nil
	}
	return s.ProductData.MatchedProducts
}
