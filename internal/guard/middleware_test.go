package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

type stubSignOuter struct {
	calls int
	ids   []string
}

func (s *stubSignOuter) SignOut(ctx context.Context, id string) (session.Session, error) {
	s.calls++
	s.ids = append(s.ids, id)
	return session.Initial(), nil
}

func serveGuarded(t *testing.T, g *Guard, store SignOuter, s session.Session, path string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	rendered := false
	h := g.Middleware(store, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rendered = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(session.WithContext(req.Context(), "sid-1", s))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, rendered
}

func TestMiddlewareExpiredTokenSignsOutAndRedirects(t *testing.T) {
	g := testGuard()
	store := &stubSignOuter{}

	rec, rendered := serveGuarded(t, g, store, authenticated(tokenWithExp(t, fixedNow.Add(-10*time.Second))), "/dashboard")

	if rendered {
		t.Fatalf("protected content rendered with expired token")
	}
	if store.calls != 1 || store.ids[0] != "sid-1" {
		t.Fatalf("expected a single sign out for sid-1, got %v", store.ids)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/sign-in" {
		t.Fatalf("expected redirect to /sign-in, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestMiddlewareValidTokenOnSignInRedirectsToLanding(t *testing.T) {
	g := testGuard()
	store := &stubSignOuter{}

	rec, rendered := serveGuarded(t, g, store, authenticated(tokenWithExp(t, fixedNow.Add(time.Hour))), "/sign-in")

	if rendered || store.calls != 0 {
		t.Fatalf("unexpected render=%v signOuts=%d", rendered, store.calls)
	}
	if rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %q", rec.Header().Get("Location"))
	}
}

func TestMiddlewareRendersProtectedRouteWithDecision(t *testing.T) {
	g := testGuard()
	store := &stubSignOuter{}

	var got Decision
	h := g.Middleware(store, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = DecisionFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(session.WithContext(req.Context(), "sid", authenticated(tokenWithExp(t, fixedNow.Add(time.Hour)))))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.State != StateAuthenticatedOnProtectedRoute || !got.Render {
		t.Fatalf("unexpected decision in context: %+v", got)
	}
}

func TestMiddlewareWithoutSessionRedirects(t *testing.T) {
	g := testGuard()
	rendered := false
	h := g.Middleware(&stubSignOuter{}, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rendered = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))

	if rendered || rec.Header().Get("Location") != "/sign-in" {
		t.Fatalf("expected redirect without render, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}
