package constants

// Standard Response Field Keys
const (
	ResponseFieldData    = "data"
	ResponseFieldMessage = "message"
	ResponseFieldDetails = "details"
	ResponseFieldErrors  = "errors"
	ResponseFieldCode    = "code"
)

// Response Format Functions
func BuildDataResponse(message string, data any) map[string]any {
	response := map[string]any{
		ResponseFieldMessage: message,
	}

	if data != nil {
		response[ResponseFieldData] = data
	}

	return response
}

func BuildErrorResponse(message string, details any) map[string]any {
	response := map[string]any{
		ResponseFieldMessage: message,
	}

	if details != nil {
		response[ResponseFieldDetails] = details
	}

	return response
}

// BuildValidationErrorResponse renders a field-keyed map of messages.
func BuildValidationErrorResponse(fields map[string]string) map[string]any {
	return map[string]any{
		ResponseFieldMessage: MsgValidationError,
		ResponseFieldErrors:  fields,
	}
}

func BuildSuccessResponse(message string) map[string]any {
	return map[string]any{
		ResponseFieldMessage: message,
	}
}
