package dto

type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// EmailPayload is the body of a send-email job.
type EmailPayload struct {
	Subject      string         `json:"subject"`
	From         *EmailAddress  `json:"from,omitempty"`
	To           []EmailAddress `json:"to"`
	TemplateID   string         `json:"templateId"`
	TemplateData map[string]any `json:"templateData"`
}

// PushPayload is the body of a send-push-notification job.
type PushPayload struct {
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	DeviceTokens []string          `json:"deviceTokens"`
	Data         map[string]string `json:"data,omitempty"`
}

// PushResult is the outcome of one device token in a push job.
type PushResult struct {
	Token     string `json:"token"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}
