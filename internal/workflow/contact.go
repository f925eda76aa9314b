package workflow

import (
	"context"
	"strings"

	"cropcure/internal/api"
	"cropcure/internal/diagnosis"
	"cropcure/internal/metrics"
)

// DefaultContactError is shown when the backend rejected the form without a message
const DefaultContactError = "Failed to send message"

// ContactSubmitter is the subset of the API client the contact page needs
type ContactSubmitter interface {
	SubmitContactForm(ctx context.Context, form diagnosis.ContactForm) api.Response[struct{}]
}

// ContactStatus is the tri-state banner of the contact page
type ContactStatus string

// Contact statuses
const (
	ContactIdle    ContactStatus = "idle"
	ContactSuccess ContactStatus = "success"
	ContactError   ContactStatus = "error"
)

// ContactState is what the contact page renders after an action
type ContactState struct {
	Form   diagnosis.ContactForm
	Status ContactStatus
	Error  string
}

// Contact controls contact form submissions
type Contact struct {
	client  ContactSubmitter
	metrics *metrics.Metrics
}

// NewContact creates the controller. m may be nil.
func NewContact(client ContactSubmitter, m *metrics.Metrics) *Contact {
	return &Contact{client: client, metrics: m}
}

// Submit validates and sends the form. The form is cleared only on a
// confirmed success.
func (c *Contact) Submit(ctx context.Context, form diagnosis.ContactForm) ContactState {
	form.Trim()
	if err := form.Validate(); err != nil {
		c.count("invalid")
		return ContactState{Form: form, Status: ContactError, Error: validationMessage(err)}
	}

	res := c.client.SubmitContactForm(ctx, form)
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = DefaultContactError
		}
		c.count("error")
		return ContactState{Form: form, Status: ContactError, Error: msg}
	}

	form.Clear()
	c.count("success")
	return ContactState{Form: form, Status: ContactSuccess}
}

func (c *Contact) count(status string) {
	if c.metrics != nil {
		c.metrics.Contacts.WithLabelValues(status).Inc()
	}
}

func validationMessage(err error) string {
	parts := []string{err.Error()}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts = parts[:0]
		for _, e := range joined.Unwrap() {
			parts = append(parts, e.Error())
		}
	}
	return "Please check the form: " + strings.Join(parts, "; ")
}
