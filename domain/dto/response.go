package dto

// Res is the envelope every social operation returns, independent of
// transport. Code doubles as the HTTP status when serialized.
type Res struct {
	Status   string      `json:"status"` // success | error
	Code     int         `json:"code"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Platform string      `json:"platform"`
	Details  interface{} `json:"details"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PostRequest is the body accepted by the post endpoint.
type PostRequest struct {
	Text string `json:"text" binding:"required"`
}

// AuthorizeResponse carries the platform authorization URL back to the client.
type AuthorizeResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}
