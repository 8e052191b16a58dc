package entity

// APIResponse is the envelope every JSON endpoint answers with
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// Success builds a successful envelope
func Success(message string, data interface{}) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data}
}

// Failure builds an error envelope
func Failure(message string, errors interface{}) APIResponse {
	return APIResponse{Success: false, Message: message, Errors: errors}
}
