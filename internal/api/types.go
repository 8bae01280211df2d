package api

// EmbedRequest is the body of POST /api/embed
type EmbedRequest struct {
	Text string `json:"text"`
}

// EmbedResponse is returned on success
type EmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// ErrorResponse carries a human-readable message for every failure
type ErrorResponse struct {
	Detail string `json:"detail"`
}
