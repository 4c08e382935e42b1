// Package depserver implements the dep-server HTTP service: a shared,
// long-running process that resolves abstract requirements to apt
// package names on behalf of many build sessions, so each one doesn't
// need its own apt file-index. Grounded on ognibuild/dep_server.py.
package depserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/resolver"
	"golang.org/x/sync/errgroup"
)

// Server resolves requirements to apt package names over HTTP.
type Server struct {
	Apt *resolver.AptResolver
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/families", s.handleFamilies)
	mux.HandleFunc("/resolve-apt", s.handleResolveApt)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requirement.Families())
}

type resolveAptRequest struct {
	Requirement json.RawMessage `json:"requirement"`
}

// handleResolveApt decodes {"requirement": [family, payload]}, resolves
// it to an apt package, and replies with a JSON array of package names.
// An unrecognized family tag gets a 404 with a "Reason: family-unknown"
// header, matching what resolver.resolveAptRequirementDepServer expects
// from a server. Mirrors handle_apt.
func (s *Server) handleResolveApt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body resolveAptRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}
	req, err := requirement.Unmarshal(body.Requirement)
	if err != nil {
		var unknown *requirement.UnknownRequirementFamily
		if asUnknownFamily(err, &unknown) {
			w.Header().Set("Reason", "family-unknown")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"reason": "family-unknown",
				"family": unknown.Family,
			})
			return
		}
		http.Error(w, fmt.Sprintf("decoding requirement: %v", err), http.StatusBadRequest)
		return
	}

	pkg, err := s.Apt.ResolvePackageName(req)
	if err != nil {
		http.Error(w, fmt.Sprintf("resolving %v: %v", req, err), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode([]string{pkg})
}

func asUnknownFamily(err error, target **requirement.UnknownRequirementFamily) bool {
	if u, ok := err.(*requirement.UnknownRequirementFamily); ok {
		*target = u
		return true
	}
	return false
}

// Serve listens on addr and runs until ctx is canceled, at which point it
// shuts the server down gracefully. Mirrors cmd/distri/export.go's
// errgroup-based serve/shutdown-on-cancel pairing.
func Serve(ctx context.Context, addr string, s *Server) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("depserver: listen on %s: %w", addr, err)
	}
	httpServer := &http.Server{Addr: addr, Handler: s.routes()}

	var eg errgroup.Group
	eg.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		return httpServer.Shutdown(context.Background())
	})
	return eg.Wait()
}
