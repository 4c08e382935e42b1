package depserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/resolver"
	"github.com/ognibuild/ognibuild/session"
)

type mapFileIndex struct{ byPath map[string][]string }

func (m mapFileIndex) SearchFiles(_ context.Context, path string, regex, caseInsensitive bool) ([]string, error) {
	return m.byPath[path], nil
}

func newTestServer() *Server {
	idx := mapFileIndex{byPath: map[string][]string{"/usr/bin/gcc": {"gcc-12"}}}
	return &Server{Apt: resolver.NewAptResolver(session.NewPlain(), idx)}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleFamiliesReturnsRegisteredFamilies(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/families")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	var families []string
	if err := json.NewDecoder(resp.Body).Decode(&families); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("families = [], want at least one registered family")
	}
}

func TestHandleResolveAptResolvesBinary(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	payload, err := requirement.Marshal(&requirement.Binary{Name: "gcc"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	body, _ := json.Marshal(map[string]json.RawMessage{"requirement": payload})

	resp, err := srv.Client().Post(srv.URL+"/resolve-apt", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var packages []string
	if err := json.NewDecoder(resp.Body).Decode(&packages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(packages) != 1 || packages[0] != "gcc-12" {
		t.Errorf("packages = %v, want [gcc-12]", packages)
	}
}

func TestHandleResolveAptUnknownFamily(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	body, _ := json.Marshal(map[string]json.RawMessage{
		"requirement": json.RawMessage(`["totally-unknown-family", {}]`),
	})
	resp, err := srv.Client().Post(srv.URL+"/resolve-apt", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if resp.Header.Get("Reason") != "family-unknown" {
		t.Errorf("Reason header = %q, want family-unknown", resp.Header.Get("Reason"))
	}
}

func TestServeShutsDownOnContextCancel(t *testing.T) {
	s := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", s) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after context cancel")
	}
}
