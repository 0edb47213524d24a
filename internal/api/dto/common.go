package dto

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SuccessResponse acknowledges delete operations
type SuccessResponse struct {
	Success bool `json:"success"`
}
