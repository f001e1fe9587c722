package workflow

// User-facing replies and error texts. These strings are part of the
// conversational contract with downstream clients; keep them verbatim.
const (
	msgApologyRetry = "不好意思，刚才处理你的问题时出现了一点小差错，可以再问一次吗？"
	msgRefusal      = "抱歉呀，我主要专注于保险相关问题的解答~ 如果你有关于保险产品、条款或基础知识的疑问，我会尽力帮你解答哦！"
	msgNoClauseInfo = "抱歉，没有找到相关的条款信息。"

	errNoProductMatched = "未找到与查询相关的保险产品"
	errNoProductName    = "无法从查询中提取保险产品名称"
	errNoClausesFound   = "未找到与该产品相关的保险条款"

	errRewriteFailed   = "意图改写处理失败: %s"
	errRouteFailed     = "路由处理失败: %s"
	errMatchFailed     = "产品匹配失败: %s"
	errSelectFailed    = "产品选择失败: %s"
	errRetrieveFailed  = "检索失败: %s"
	errGenerateFailed  = "生成回答失败: %s"
	errKnowledgeFailed = "保险知识解答失败: %s"

	msgKnowledgeFailure = "很抱歉，处理您的问题时出现错误: %s\n请尝试重新表述您的问题。"

	selectorPrompt = "帮你查到%d款产品，你想了解哪款产品，请点击下方产品选择：\n%s\n\n请回复产品编号(1-%d)或产品名称。"
)
