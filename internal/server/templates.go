package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/sessions"

	"cropcure/internal/embeds"
	"cropcure/internal/logging"
)

var pages = []string{"home", "about", "contact", "classify"}

// loadTemplates parses every page together with the base layout and partials
func (s *Server) loadTemplates() error {
	funcs := template.FuncMap{}
	for _, page := range pages {
		tmpl, err := embeds.ParsePage(funcs, page)
		if err != nil {
			return fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		s.templates[page] = tmpl
	}
	return nil
}

// baseTemplateData holds the fields the base layout reads
func (s *Server) baseTemplateData(title, active string) map[string]interface{} {
	return map[string]interface{}{
		"Title":    title,
		"Active":   active,
		"Version":  s.versionInfo.String(),
		"Health":   s.healthStatus(),
		"Messages": nil,
	}
}

// flashMessages pops the pending flashes. The caller saves the session.
func flashMessages(session *sessions.Session) []interface{} {
	var messages []interface{}
	for _, kind := range []struct{ key, class string }{
		{"success", "success"},
		{"info", "info"},
		{"error", "danger"},
	} {
		for _, flash := range session.Flashes(kind.key) {
			messages = append(messages, map[string]interface{}{
				"Type": kind.class,
				"Text": flash,
			})
		}
	}
	return messages
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data map[string]interface{}) {
	tmpl, ok := s.templates[page]
	if !ok {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		logging.Errorf("Error rendering %s template: %v", page, err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
