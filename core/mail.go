package core

import (
	"net/mail"
)

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// TemplateData is handed to the provider's dynamic template.
		// "subject" is always set from Subject.
		TemplateData map[string]interface{}
	}

	// EmailService is any service that can send emails.
	// Delivery failures are logged by the implementation, never returned to the caller.
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// NewEmailMessage builds a templated message to a single recipient.
func NewEmailMessage(to, subject string, data map[string]interface{}) *EmailMessage {
	return &EmailMessage{
		To:           []mail.Address{{Address: to}},
		Subject:      subject,
		TemplateData: data,
	}
}

// DynamicData returns the template data with the subject merged in.
func (m *EmailMessage) DynamicData() map[string]interface{} {
	data := make(map[string]interface{}, len(m.TemplateData)+1)
	for k, v := range m.TemplateData {
		data[k] = v
	}
	data["subject"] = m.Subject
	return data
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.BodyStr != "" || len(m.TemplateData) > 0 }
