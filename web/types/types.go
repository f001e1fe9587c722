package types

// AskRequest is the inbound question payload. UserID doubles as the
// conversation session key.
type AskRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	UserQuestion string `json:"user_question" binding:"required,min=1,max=2000"`
	Stream       *bool  `json:"stream"`
}

// WantsStream reports the requested response mode; streaming is the default.
func (r *AskRequest) WantsStream() bool {
	return r.Stream == nil || *r.Stream
}

// Envelope is the uniform response body, shared by the JSON and SSE
// paths so clients parse both the same way.
type Envelope struct {
	Code        int      `json:"code"`
	Message     string   `json:"message"`
	Data        *string  `json:"data"`
	ProductList []string `json:"product_list"`
}

func NewEnvelope(code int, message string, data *string, productList []string) Envelope {
	return Envelope{
		Code:        code,
		Message:     message,
		Data:        data,
		ProductList: productList,
	}
}
