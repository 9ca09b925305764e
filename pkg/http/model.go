package http

// ErrorBody is the failure envelope shared by every endpoint.
type ErrorBody struct {
	OK     bool        `json:"ok"`
	Error  string      `json:"error"`
	Detail interface{} `json:"detail,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"symbol"`
	Message string                 `json:"message,omitempty" example:"symbol is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
