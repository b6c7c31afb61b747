// Package testutil provides shared test fixtures.
package testutil

import (
	"image"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/banshee-data/headosc/internal/depth"
)

// Figure returns a 64x48 scene at background depth 255 holding one
// standing figure: a 10x20 body at depth 120 with its top-left corner at
// (20,20) and a 4x4 head at depth 100 at (23,16). The figure covers 216
// pixels and the head's top row is y=16.
func Figure() *depth.Frame {
	f := depth.NewFrame(64, 48)
	f.Fill(255)
	f.FillRect(image.Rect(20, 20, 30, 40), 120)
	f.FillRect(image.Rect(23, 16, 27, 20), 100)
	return f
}

// DebugRequest builds a request that tsweb's debug handlers accept, which
// only serve loopback clients. A non-nil form is sent url-encoded.
func DebugRequest(method, target string, form url.Values) *http.Request {
	body := ""
	if form != nil {
		body = form.Encode()
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

// ServeDebug runs a DebugRequest through h and returns the recorded response.
func ServeDebug(h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, DebugRequest(method, target, form))
	return w
}
