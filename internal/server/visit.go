package server

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"cropcure/internal/diagnosis"
	"cropcure/internal/logging"
	"cropcure/internal/upload"
)

const visitKey = "visit_id"

// visit is the classification page state of one browser. It lives in memory
// only and is gone after reset or expiry.
type visit struct {
	id     string
	widget *upload.Widget

	mu     sync.Mutex
	image  *upload.SelectedImage
	result *diagnosis.Result
	err    string
}

func newVisit(id string, maxBytes int64) *visit {
	v := &visit{id: id}
	v.widget = upload.NewWidget(v.selected, upload.WithMaxBytes(maxBytes))
	return v
}

// selected is the widget callback. A new image replaces the previous one and
// clears any earlier outcome.
func (v *visit) selected(img *upload.SelectedImage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.image = img
	v.result = nil
	v.err = ""
}

func (v *visit) snapshot() (*upload.SelectedImage, *diagnosis.Result, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.image, v.result, v.err
}

// finish stores the outcome for img. It is dropped when the selection changed
// or was reset while the analysis ran.
func (v *visit) finish(img *upload.SelectedImage, result *diagnosis.Result, errMsg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.image != img {
		return
	}
	v.result = result
	v.err = errMsg
}

func (v *visit) reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.image = nil
	v.result = nil
	v.err = ""
}

// session loads the visitor's cookie session. A cookie that no longer
// decodes (for example after a key rotation) starts a fresh session.
func (s *Server) session(r *http.Request) *sessions.Session {
	session, err := s.sessionStore.Get(r, sessionName)
	if err != nil {
		logging.Debugf("Discarding undecodable session: %v", err)
	}
	return session
}

func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
	if err := session.Save(r, w); err != nil {
		logging.Errorf("Failed to save session: %v", err)
	}
}

// visitFor returns the visit bound to session, creating one when the
// session is new or its visit expired. The caller saves the session.
func (s *Server) visitFor(session *sessions.Session) *visit {
	if id, ok := session.Values[visitKey].(string); ok {
		if v, ok := s.visits.Get(id); ok {
			s.visits.Touch(id)
			return v
		}
	}

	id := uuid.NewString()
	v := newVisit(id, s.config.MaxUploadBytes)
	s.visits.Set(id, v)
	session.Values[visitKey] = id
	return v
}

// existingVisit is visitFor without creation, for read-only handlers
func (s *Server) existingVisit(session *sessions.Session) (*visit, bool) {
	id, ok := session.Values[visitKey].(string)
	if !ok {
		return nil, false
	}
	return s.visits.Get(id)
}
