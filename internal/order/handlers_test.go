package order

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(store, nil).RegisterRoutes(r.Group("/v1"))
	return r
}

func postOrder(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrderRejectsMissingOrderNumber(t *testing.T) {
	r := newTestRouter(NewMemoryStore())

	w := postOrder(t, r, `{"id": "o1", "salesChannelId": "channel-1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without order number, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "orderNumber") {
		t.Errorf("error should name the field: %s", w.Body.String())
	}
}

func TestCreateOrderRejectsOversizedFields(t *testing.T) {
	r := newTestRouter(NewMemoryStore())

	w := postOrder(t, r, `{"orderNumber": "`+strings.Repeat("9", 65)+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized order number, got %d", w.Code)
	}

	w = postOrder(t, r, `{
		"orderNumber": "10001",
		"customer": {"email": "`+strings.Repeat("a", 321)+`@example.com"}
	}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized email, got %d", w.Code)
	}
}

func TestCreateOrderSanitizesFields(t *testing.T) {
	store := NewMemoryStore()
	r := newTestRouter(store)

	// An order number padded with whitespace and an embedded null byte.
	dirty, err := json.Marshal("  10001" + string(rune(0)) + " ")
	if err != nil {
		t.Fatalf("marshal dirty order number: %v", err)
	}
	w := postOrder(t, r, `{
		"id": "o1",
		"orderNumber": `+string(dirty)+`,
		"customer": {"email": " jane@example.com "}
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Order Order `json:"order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.OrderNumber != "10001" {
		t.Errorf("order number not sanitized: %q", resp.Order.OrderNumber)
	}
	if resp.Order.Customer.Email != "jane@example.com" {
		t.Errorf("email not sanitized: %q", resp.Order.Customer.Email)
	}
}
