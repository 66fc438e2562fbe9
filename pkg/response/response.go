package response

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the JSON envelope for API errors and plain status replies.
// Error carries the message catalog key so front-ends can re-localize,
// Message the already localized text.
type Response struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

func SuccessResponse(statusCode int, msg string, data ...any) Response {
	resp := Response{
		Status:     StatusSuccess,
		StatusCode: statusCode,
		Message:    msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

func ErrorResponse(statusCode int, key, msg string) Response {
	return Response{
		Status:     StatusError,
		StatusCode: statusCode,
		Error:      key,
		Message:    msg,
	}
}
