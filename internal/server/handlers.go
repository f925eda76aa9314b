package server

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"cropcure/internal/diagnosis"
	"cropcure/internal/display"
	"cropcure/internal/logging"
	"cropcure/internal/upload"
	"cropcure/internal/workflow"
)

// multipartOverhead is allowed on top of the image limit for form fields and boundaries
const multipartOverhead = 1 << 20

const (
	msgSelectFirst  = "Please select an image first"
	msgNotImage     = "Please select an image file"
	msgTooLarge     = "The image is too large"
	msgNoCamera     = "Camera not supported on this device."
	msgCameraDenied = "Unable to access camera. Please try uploading a file instead."
	msgRateLimited  = "Too many messages, please try again in a minute"
)

// handleHome handles the landing page
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	data := s.baseTemplateData("Home", "home")
	data["Messages"] = flashMessages(session)
	s.saveSession(w, r, session)

	s.render(w, http.StatusOK, "home", data)
}

// handleAbout handles the about page
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	data := s.baseTemplateData("About", "about")
	data["Diseases"] = s.diseases()
	data["HealthyThreshold"] = strconv.Itoa(display.HealthyThreshold)
	data["WarningThreshold"] = strconv.Itoa(display.WarningThreshold)

	s.render(w, http.StatusOK, "about", data)
}

// handleContact shows an empty contact form
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	data := s.baseTemplateData("Contact", "contact")
	data["Contact"] = workflow.ContactState{Status: workflow.ContactIdle}

	s.render(w, http.StatusOK, "contact", data)
}

// handleContactSubmit sends the form and re-renders it with the outcome.
// The entered values survive every failure.
func (s *Server) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	form := diagnosis.ContactForm{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Message: r.PostFormValue("message"),
	}

	data := s.baseTemplateData("Contact", "contact")

	if !s.limiter.Allow() {
		logging.Warnf("Contact submission rate limited (%s)", r.RemoteAddr)
		if s.metrics != nil {
			s.metrics.Contacts.WithLabelValues("limited").Inc()
		}
		data["Contact"] = workflow.ContactState{Form: form, Status: workflow.ContactError, Error: msgRateLimited}
		s.render(w, http.StatusTooManyRequests, "contact", data)
		return
	}

	state := s.contact.Submit(r.Context(), form)
	data["Contact"] = state
	s.render(w, http.StatusOK, "contact", data)
}

// handleClassify renders the upload form, the selected image and the outcome
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)

	data := s.baseTemplateData("Classify", "classify")
	data["Messages"] = flashMessages(session)
	data["Skeleton"] = display.Skeleton()
	data["Selected"] = (*upload.SelectedImage)(nil)
	data["Result"] = (*display.Card)(nil)
	data["Error"] = ""

	if v, ok := s.existingVisit(session); ok {
		img, result, errMsg := v.snapshot()
		data["Selected"] = img
		data["Error"] = errMsg
		if result != nil {
			card := display.NewCard(*result)
			data["Result"] = &card
		}
	}
	s.saveSession(w, r, session)

	s.render(w, http.StatusOK, "classify", data)
}

// handleSelect accepts an image from the file picker, a drop or a camera frame
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	v := s.visitFor(session)
	defer func() {
		s.saveSession(w, r, session)
		http.Redirect(w, r, "/classify", http.StatusSeeOther)
	}()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			session.AddFlash(msgTooLarge, "error")
		} else {
			session.AddFlash(msgSelectFirst, "error")
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	src := s.sourceFor(upload.ParseKind(r.FormValue("source")), r.MultipartForm)
	err := v.widget.Select(r.Context(), src)
	s.countSelection(src.Kind(), err)
	if err != nil {
		logging.Infof("Rejected %s selection: %v", src.Kind(), err)
		session.AddFlash(selectionMessage(err), "error")
	}
}

// sourceFor maps the posted form to an acquisition path. A camera
// submission carries the captured canvas frame.
func (s *Server) sourceFor(kind upload.Kind, form *multipart.Form) upload.Source {
	files := func(field string) []upload.File {
		var out []upload.File
		for _, fh := range form.File[field] {
			out = append(out, upload.FromMultipart(fh))
		}
		return out
	}

	switch kind {
	case upload.KindDrop:
		return upload.DragDrop{Files: files("image")}
	case upload.KindCamera:
		frames := files("frame")
		if len(frames) == 0 {
			return upload.Camera{}
		}
		return upload.Camera{
			Devices: upload.FrameDevices{Frame: frames[0]},
			Encode:  upload.DefaultEncoder,
		}
	default:
		return upload.FileInput{Files: files("image")}
	}
}

func (s *Server) countSelection(kind upload.Kind, err error) {
	if s.metrics == nil {
		return
	}
	result := "accepted"
	if err != nil {
		result = "rejected"
	}
	s.metrics.Selections.WithLabelValues(string(kind), result).Inc()
}

func selectionMessage(err error) string {
	switch {
	case errors.Is(err, upload.ErrNotImage):
		return msgNotImage
	case errors.Is(err, upload.ErrTooLarge):
		return msgTooLarge
	case errors.Is(err, upload.ErrCameraUnsupported):
		return msgNoCamera
	case errors.Is(err, upload.ErrCameraUnavailable):
		return msgCameraDenied
	case errors.Is(err, upload.ErrSelectionPending), errors.Is(err, upload.ErrCaptureInProgress):
		return "Please wait for the current image to finish uploading"
	default:
		return msgSelectFirst
	}
}

// handleAnalyze classifies the selected image. Repeated submissions for the
// same visit join the request already in flight.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	defer func() {
		s.saveSession(w, r, session)
		http.Redirect(w, r, "/classify", http.StatusSeeOther)
	}()

	v, ok := s.existingVisit(session)
	if !ok {
		session.AddFlash(msgSelectFirst, "error")
		return
	}
	img, result, _ := v.snapshot()
	if img == nil {
		session.AddFlash(msgSelectFirst, "error")
		return
	}
	if result != nil {
		return
	}

	// A browser giving up on the request must not abort the shared call
	ctx := context.WithoutCancel(r.Context())
	_, _, _ = s.analyses.Do(v.id, func() (interface{}, error) {
		// A call that finished just before this one already stored the outcome
		if current, done, _ := v.snapshot(); done != nil || current != img {
			return nil, nil
		}
		res, err := s.classification.Analyze(ctx, img)
		if err != nil {
			v.finish(img, nil, analysisMessage(err))
			return nil, nil
		}
		v.finish(img, &res, "")
		return nil, nil
	})
}

func analysisMessage(err error) string {
	var analysisErr *workflow.AnalysisError
	switch {
	case errors.As(err, &analysisErr):
		return analysisErr.Message
	case errors.Is(err, workflow.ErrNoImage):
		return msgSelectFirst
	default:
		return workflow.DefaultClassificationError
	}
}

// handleReset clears the selection and the outcome
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	if v, ok := s.existingVisit(session); ok {
		v.reset()
	}
	s.saveSession(w, r, session)
	http.Redirect(w, r, "/classify", http.StatusSeeOther)
}

// rasterTypes are echoed back to the preview. Anything else (SVG in
// particular can carry script) is served as an opaque download.
var rasterTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

func previewType(declared string) string {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err == nil && rasterTypes[mediaType] {
		return mediaType
	}
	return "application/octet-stream"
}

// handleSelectedImage serves the selected image for the preview
func (s *Server) handleSelectedImage(w http.ResponseWriter, r *http.Request) {
	v, ok := s.existingVisit(s.session(r))
	if !ok {
		http.NotFound(w, r)
		return
	}
	img, _, _ := v.snapshot()
	if img == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", previewType(img.ContentType))
	w.Header().Set("Content-Length", strconv.FormatInt(img.Size(), 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "sandbox")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img.Data)
}
