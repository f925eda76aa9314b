// Package diagnosis holds the transient data model of a leaf diagnosis and the contact form.
package diagnosis

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Disease is the label returned by the classifier
type Disease string

// Labels understood by the presentation layer. Any other label is kept verbatim.
const (
	Healthy     Disease = "Healthy"
	EarlyBlight Disease = "Early Blight"
	LateBlight  Disease = "Late Blight"
)

// Known lists the labels in the order the backend reports them
var Known = []Disease{Healthy, EarlyBlight, LateBlight}

// IsKnown reports whether d is one of the three supported labels
func (d Disease) IsKnown() bool {
	for _, k := range Known {
		if d == k {
			return true
		}
	}
	return false
}

func (d Disease) String() string {
	return string(d)
}

// Result is the merged outcome of classification and solution lookup.
// It lives for one diagnosis attempt only.
type Result struct {
	Disease    Disease `json:"disease"`
	Confidence float64 `json:"confidence"`
	Solution   string  `json:"solution,omitempty"`

	// SolutionUnavailable is set when classification succeeded but the
	// treatment lookup did not.
	SolutionUnavailable bool   `json:"solution_unavailable,omitempty"`
	SolutionError       string `json:"-"`
}

// HasSolution reports whether treatment advice was merged into the result
func (r Result) HasSolution() bool {
	return r.Solution != ""
}

// ContactForm is the payload of the contact page
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// FieldError names the form field that failed validation
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Trim removes surrounding whitespace from all fields
func (f *ContactForm) Trim() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Message = strings.TrimSpace(f.Message)
}

// Validate requires all three fields and a syntactically valid email
func (f ContactForm) Validate() error {
	var errs []error
	if strings.TrimSpace(f.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Reason: "is required"})
	}
	email := strings.TrimSpace(f.Email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Reason: "is required"})
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, FieldError{Field: "email", Reason: "is not a valid address"})
	}
	if strings.TrimSpace(f.Message) == "" {
		errs = append(errs, FieldError{Field: "message", Reason: "is required"})
	}
	return errors.Join(errs...)
}

// Clear empties all fields
func (f *ContactForm) Clear() {
	*f = ContactForm{}
}

// IsEmpty reports whether all fields are blank
func (f ContactForm) IsEmpty() bool {
	return f.Name == "" && f.Email == "" && f.Message == ""
}
