package prompts

import (
	_ "embed"
	"fmt"
	"strings"
)

// Embedded prompt files

//go:embed rewriter_system.txt
var rewriterSystem string

//go:embed rewriter_user.txt
var rewriterUser string

//go:embed router_system.txt
var routerSystem string

//go:embed router_user.txt
var routerUser string

//go:embed greeting_system.txt
var greetingSystem string

//go:embed greeting_user.txt
var greetingUser string

//go:embed extract_product_system.txt
var extractProductSystem string

//go:embed extract_product_user.txt
var extractProductUser string

//go:embed overview_system.txt
var overviewSystem string

//go:embed overview_user.txt
var overviewUser string

//go:embed candidate_system.txt
var candidateSystem string

//go:embed candidate_user.txt
var candidateUser string

//go:embed chunk_type_system.txt
var chunkTypeSystem string

//go:embed chunk_type_user.txt
var chunkTypeUser string

//go:embed generator_system.txt
var generatorSystem string

//go:embed generator_user.txt
var generatorUser string

//go:embed generator_user_generic.txt
var generatorUserGeneric string

//go:embed knowledge_system.txt
var knowledgeSystem string

//go:embed knowledge_user.txt
var knowledgeUser string

//go:embed knowledge_user_defs.txt
var knowledgeUserDefs string

//go:embed keywords_system.txt
var keywordsSystem string

//go:embed keywords_user.txt
var keywordsUser string

func RewriterSystem() string       { return strings.TrimSpace(rewriterSystem) }
func RouterSystem() string         { return strings.TrimSpace(routerSystem) }
func GreetingSystem() string       { return strings.TrimSpace(greetingSystem) }
func ExtractProductSystem() string { return strings.TrimSpace(extractProductSystem) }
func OverviewSystem() string       { return strings.TrimSpace(overviewSystem) }
func CandidateSystem() string      { return strings.TrimSpace(candidateSystem) }
func ChunkTypeSystem() string      { return strings.TrimSpace(chunkTypeSystem) }
func GeneratorSystem() string      { return strings.TrimSpace(generatorSystem) }
func KnowledgeSystem() string      { return strings.TrimSpace(knowledgeSystem) }
func KeywordsSystem() string       { return strings.TrimSpace(keywordsSystem) }

// Rewriter builds the question-rewrite prompt from the rendered dialogue history.
func Rewriter(conversation string) string {
	return fmt.Sprintf(strings.TrimSpace(rewriterUser), conversation)
}

// Router builds the four-option intent classification prompt.
func Router(question string) string {
	return fmt.Sprintf(strings.TrimSpace(routerUser), question)
}

// Greeting builds the pleasantry reply prompt.
func Greeting(content string) string {
	return fmt.Sprintf(strings.TrimSpace(greetingUser), content)
}

// ExtractProduct builds the product-name extraction prompt.
func ExtractProduct(question string) string {
	return fmt.Sprintf(strings.TrimSpace(extractProductUser), question)
}

// Overview builds the overview-vs-specific binary classification prompt.
func Overview(question string) string {
	return fmt.Sprintf(strings.TrimSpace(overviewUser), question)
}

// Candidates builds the prompt generating k diversified candidate answers.
func Candidates(productName, question string, k int) string {
	return fmt.Sprintf(strings.TrimSpace(candidateUser), productName, question, k)
}

// ChunkType builds the 1-of-27 attribute category classification prompt.
// categories is the rendered "编号：标签" list.
func ChunkType(categories, question string) string {
	return fmt.Sprintf(strings.TrimSpace(chunkTypeUser), categories, question)
}

// Generator builds the grounded answer prompt, product-scoped when a
// product name is known.
func Generator(productName, question, context string) string {
	if productName == "" {
		return fmt.Sprintf(strings.TrimSpace(generatorUserGeneric), question, context)
	}
	return fmt.Sprintf(strings.TrimSpace(generatorUser), productName, question, context)
}

// Knowledge builds the general-knowledge answer prompt, with term
// definitions appended when available.
func Knowledge(question, definitions string) string {
	if definitions == "" {
		return fmt.Sprintf(strings.TrimSpace(knowledgeUser), question)
	}
	return fmt.Sprintf(strings.TrimSpace(knowledgeUserDefs), question, definitions)
}

// Keywords builds the 3-5 keyword extraction prompt.
func Keywords(question string) string {
	return fmt.Sprintf(strings.TrimSpace(keywordsUser), question)
}
