package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type bindTarget struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

func runBind(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var target bindTarget
		if !BindJSON(c, &target) {
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	return w
}

func TestBindJSONValid(t *testing.T) {
	w := runBind(t, `{"name":"Ada","email":"ada@example.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBindJSONValidationErrors(t *testing.T) {
	w := runBind(t, `{"email":"not-an-email"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp struct {
		Message string `json:"message"`
		Details struct {
			Fields []FieldError `json:"fields"`
		} `json:"details"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, w.Body.String())
	}

	if len(resp.Details.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", resp.Details.Fields)
	}

	byField := map[string]FieldError{}
	for _, fe := range resp.Details.Fields {
		byField[fe.Field] = fe
	}

	if byField["name"].Rule != "required" {
		t.Errorf("expected required rule on name, got %+v", byField["name"])
	}

	if byField["email"].Rule != "email" {
		t.Errorf("expected email rule on email, got %+v", byField["email"])
	}
}

func TestBindJSONSyntaxError(t *testing.T) {
	// truncated and empty bodies surface as decoder EOFs, garbage as a
	// *json.SyntaxError; all map to the same detail
	for _, body := range []string{`{"name":`, ``, `not json at all`} {
		w := runBind(t, body)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}

		if !strings.Contains(w.Body.String(), "invalid_json_syntax") {
			t.Errorf("body %q: expected syntax error detail, got %s", body, w.Body.String())
		}
	}
}

func TestBindJSONTypeMismatch(t *testing.T) {
	w := runBind(t, `{"name":123,"email":"ada@example.com"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	if !strings.Contains(w.Body.String(), "invalid_json_type") {
		t.Errorf("expected type error detail, got %s", w.Body.String())
	}
}
