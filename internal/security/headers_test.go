package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HeadersMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	r.ServeHTTP(w, req)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"*"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "https://reviews.example.com")
	r.ServeHTTP(w, req)

	if w.Code != 204 {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://reviews.example.com" {
		t.Errorf("allow-origin = %q", got)
	}
	// Wildcard origins must not allow credentials
	if w.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("credentials must not be allowed with wildcard origins")
	}
}

func TestValidateEndpointURL(t *testing.T) {
	if err := ValidateEndpointURL("https://minfraud.maxmind.com"); err != nil {
		t.Errorf("production endpoint rejected: %v", err)
	}

	for _, bad := range []string{
		"ftp://minfraud.maxmind.com",
		"https://localhost:8080",
		"https://127.0.0.1",
		"https://10.0.0.5",
		"https://169.254.169.254",
		"not a url at all://",
	} {
		if err := ValidateEndpointURL(bad); err == nil {
			t.Errorf("%q should be rejected", bad)
		}
	}
}
