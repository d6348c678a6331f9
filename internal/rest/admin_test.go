package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"feedbacker/domain"
	"feedbacker/internal/middleware"
	"feedbacker/pkg/config"
	"feedbacker/pkg/utils"
)

type stubAdminFeedbacks struct {
	items []domain.Feedback
}

func (s *stubAdminFeedbacks) List(_ context.Context, filter domain.FeedbackFilter) ([]domain.Feedback, *int, error) {
	return s.items, nil, nil
}

type stubSettings struct {
	values    map[string]string
	threshold float64
}

func (s *stubSettings) Get(_ context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}

	return v, nil
}

func (s *stubSettings) Set(_ context.Context, key, value string) error {
	s.values[key] = value

	return nil
}

func (s *stubSettings) AlertThreshold(context.Context) float64 { return s.threshold }

func adminCfg(t *testing.T) config.AdminConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	return config.AdminConfig{
		JWTSecret:    "test-secret",
		PasswordHash: string(hash),
	}
}

func newAdminHandler(t *testing.T) (*AdminHandler, *stubSettings) {
	settings := &stubSettings{values: map[string]string{}, threshold: 0.4}
	h := NewAdminHandler(&stubAdminFeedbacks{}, settings, adminCfg(t))

	return h, settings
}

func postJSON(t *testing.T, handler echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	return rec
}

func TestLogin(t *testing.T) {
	h, _ := newAdminHandler(t)

	rec := postJSON(t, h.Login, "/admin/api/login", `{"password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "token") {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = postJSON(t, h.Login, "/admin/api/login", `{"password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = postJSON(t, h.Login, "/admin/api/login", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUpdateSettings(t *testing.T) {
	h, settings := newAdminHandler(t)

	rec := postJSON(t, h.UpdateSettings, "/admin/api/settings", `{"alert_threshold":"0,3"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if settings.values[domain.SettingAlertThreshold] != "0.3" {
		t.Fatalf("stored = %q", settings.values[domain.SettingAlertThreshold])
	}

	// numbers are accepted too
	rec = postJSON(t, h.UpdateSettings, "/admin/api/settings", `{"alert_threshold":0.25}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h.UpdateSettings, "/admin/api/settings", `{"alert_threshold":"five"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = postJSON(t, h.UpdateSettings, "/admin/api/settings", `{"alert_threshold":"7"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range threshold must be rejected, status = %d", rec.Code)
	}
}

func TestAdminAuthMiddleware(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	guard := middleware.AdminAuth("test-secret")(next)

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/api/feedbacks", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		if err := guard(e.NewContext(req, rec)); err != nil {
			t.Fatalf("middleware error: %v", err)
		}

		return rec
	}

	if rec := call(""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status = %d", rec.Code)
	}
	if rec := call("Basic abc"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: status = %d", rec.Code)
	}
	if rec := call("Bearer garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", rec.Code)
	}

	token, err := utils.GenerateAdminJWT("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	if rec := call("Bearer " + token); rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, body %s", rec.Code, rec.Body.String())
	}
}
