package embeds

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	for _, page := range []string{"home", "about", "contact", "classify"} {
		t.Run(page, func(t *testing.T) {
			tmpl, err := ParsePage(nil, page)
			require.NoError(t, err)
			assert.NotNil(t, tmpl.Lookup("content"))
		})
	}
}

func TestCameraCaptureClosesOnFailure(t *testing.T) {
	static, err := StaticFS()
	require.NoError(t, err)
	src, err := fs.ReadFile(static, "js/upload.js")
	require.NoError(t, err)

	js := string(src)
	capture := js[strings.Index(js, `capture.addEventListener("click"`):]
	capture = capture[:strings.Index(capture, "navigator.mediaDevices.getUserMedia")]

	require.Contains(t, capture, "try {")
	catch := capture[strings.Index(capture, "} catch (err) {"):]
	assert.Contains(t, catch, "close();", "a throw while drawing or encoding must release the stream")
	assert.Equal(t, 2, strings.Count(capture, "close();"))
}
