package server_test

import (
	"encoding/json"
	"go/types"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/wfc3ir/server"
)

func TestHumanPayloadKinds(t *testing.T) {
	cases := []struct {
		hp   server.HumanPayload
		want string
	}{
		{server.HumanPayload{T: types.Float64, Float: 2.932}, `{"f64":2.932}`},
		{server.HumanPayload{T: types.Int, Int: 64}, `{"int":64}`},
		{server.HumanPayload{T: types.String, String: "RAPID"}, `{"str":"RAPID"}`},
		{server.HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		c.hp.EncodeAndRespond(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("status %d", rr.Code)
		}
		if got := strings.TrimSpace(rr.Body.String()); got != c.want {
			t.Errorf("got %s, want %s", got, c.want)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
	}
}

func TestHumanPayloadUnsupportedKind(t *testing.T) {
	rr := httptest.NewRecorder()
	server.HumanPayload{T: types.Complex128}.EncodeAndRespond(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rr.Code)
	}
}

func TestRouteTableBindAndList(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	rt := server.RouteTable{
		{Method: http.MethodGet, Path: "/lock"}:          ok,
		{Method: http.MethodPost, Path: "/lock"}:         ok,
		{Method: http.MethodGet, Path: "/exposure-time"}: ok,
	}
	if got, want := rt.Endpoints(), []string{"/exposure-time", "/lock"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Endpoints() = %v, want %v", got, want)
	}

	r := chi.NewRouter()
	rt.Bind(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/lock", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("POST /lock status %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/exposure-time", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /exposure-time status %d, want 405", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/list-of-routes", nil))
	var routes []string
	if err := json.NewDecoder(rr.Body).Decode(&routes); err != nil {
		t.Fatal(err)
	}
	if len(routes) != 2 {
		t.Errorf("list-of-routes = %v", routes)
	}
}

func TestReplyWithFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0666); err != nil {
		t.Fatal(err)
	}
	rr := httptest.NewRecorder()
	server.ReplyWithFile(rr, httptest.NewRequest(http.MethodGet, "/", nil), "a.txt", dir)
	if rr.Code != http.StatusOK || rr.Body.String() != "hello" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	server.ReplyWithFile(rr, httptest.NewRequest(http.MethodGet, "/", nil), "missing.txt", dir)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing file status %d, want 404", rr.Code)
	}
}
