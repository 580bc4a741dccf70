package member

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/codemate/codemate/internal/api"
)

func newTestService(t *testing.T, r chi.Router) *Service {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL+"/api", api.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return NewService(c)
}

func TestGetMe(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/member/me", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"data":{"id":42,"email":"gopher@codemate.kr","name":"gopher","handle":"gopher123"},"message":"","status":"OK"}`)
	})
	s := newTestService(t, r)

	p, err := s.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if p.ID != 42 || p.Handle != "gopher123" {
		t.Errorf("unexpected profile: %+v", p)
	}
	if !p.Verified() {
		t.Error("profile with a handle should be verified")
	}
}

func TestVerifiedGating(t *testing.T) {
	p := Profile{ID: 1, Email: "new@codemate.kr"}
	if p.Verified() {
		t.Error("profile without a handle must not count as verified")
	}
}

func TestSearchByHandleEscapesQuery(t *testing.T) {
	var gotHandle string
	r := chi.NewRouter()
	r.Get("/api/member/search", func(w http.ResponseWriter, req *http.Request) {
		gotHandle = req.URL.Query().Get("handle")
		fmt.Fprint(w, `{"data":[{"memberId":7,"handle":"go her","name":"g"}],"message":"","status":"OK"}`)
	})
	s := newTestService(t, r)

	results, err := s.SearchByHandle(context.Background(), "go her")
	if err != nil {
		t.Fatalf("SearchByHandle: %v", err)
	}
	if gotHandle != "go her" {
		t.Errorf("query must round-trip escaping, got %q", gotHandle)
	}
	if len(results) != 1 || results[0].MemberID != 7 {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestSearchByHandleRequiresHandle(t *testing.T) {
	s := newTestService(t, chi.NewRouter())
	if _, err := s.SearchByHandle(context.Background(), ""); err == nil {
		t.Error("empty handle must fail locally")
	}
}

func TestVerifySolvedAc(t *testing.T) {
	var gotBody string
	r := chi.NewRouter()
	r.Post("/api/member/me/verify-solvedac", func(w http.ResponseWriter, req *http.Request) {
		buf := make([]byte, 256)
		n, _ := req.Body.Read(buf)
		gotBody = string(buf[:n])
		fmt.Fprint(w, `{"data":{"id":42,"email":"gopher@codemate.kr","name":"gopher","handle":"gopher123"},"message":"","status":"OK"}`)
	})
	s := newTestService(t, r)

	p, err := s.VerifySolvedAc(context.Background(), "gopher123")
	if err != nil {
		t.Fatalf("VerifySolvedAc: %v", err)
	}
	if p.Handle != "gopher123" {
		t.Errorf("expected updated profile, got %+v", p)
	}
	if gotBody != `{"handle":"gopher123"}` {
		t.Errorf("unexpected request body: %s", gotBody)
	}
}

func TestVerifiedHandles(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/member/handles", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"data":["gopher123","rustacean"],"message":"","status":"OK"}`)
	})
	s := newTestService(t, r)

	handles, err := s.VerifiedHandles(context.Background())
	if err != nil {
		t.Fatalf("VerifiedHandles: %v", err)
	}
	if len(handles) != 2 || handles[0] != "gopher123" {
		t.Errorf("unexpected handles: %v", handles)
	}
}
