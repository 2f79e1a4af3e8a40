package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetMaxBodyBytes(t *testing.T) {
	SetMaxBodyBytes(10)
	if maxBodyBytes != 10 {
		t.Fatalf("max=%d", maxBodyBytes)
	}
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("reset max=%d", maxBodyBytes)
	}
}

func TestSetGenerateTimeout(t *testing.T) {
	SetGenerateTimeout(-time.Second)
	if generateTimeout != 0 {
		t.Fatalf("timeout=%v", generateTimeout)
	}
	SetGenerateTimeout(time.Second)
	defer SetGenerateTimeout(0)
	if generateTimeout != time.Second {
		t.Fatalf("timeout=%v", generateTimeout)
	}
}

func TestCORS(t *testing.T) {
	SetCORSOptions(true, []string{"http://ui.local"}, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	h := NewMux(&mockService{})

	req := httptest.NewRequest(http.MethodOptions, "/models", nil)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("allow-origin=%q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin=%q", got)
	}
}
