package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ognibuild/ognibuild"
	"github.com/ognibuild/ognibuild/requirement"
)

// DepServerError wraps a failure talking to a dep-server: a network error,
// a non-2xx response other than "family unknown", or a malformed body.
type DepServerError struct{ Inner error }

func (e *DepServerError) Error() string { return fmt.Sprintf("resolver: dep-server: %v", e.Inner) }
func (e *DepServerError) Unwrap() error { return e.Inner }

// RequirementFamilyUnknown is returned when the dep-server replies 404
// with a "Reason: family-unknown" header, meaning it has no resolver for
// this requirement family at all.
type RequirementFamilyUnknown struct{ Family string }

func (e *RequirementFamilyUnknown) Error() string {
	return "resolver: dep-server does not know requirement family " + e.Family
}

// resolveAptRequirementDepServer asks a dep-server to resolve req to one
// or more apt package names. Grounded on
// resolve_apt_requirement_dep_server.
func resolveAptRequirementDepServer(ctx context.Context, client *http.Client, baseURL string, req requirement.Requirement) ([]string, error) {
	payload, err := requirement.Marshal(req)
	if err != nil {
		return nil, &DepServerError{Inner: err}
	}
	body, err := json.Marshal(map[string]json.RawMessage{"requirement": payload})
	if err != nil {
		return nil, &DepServerError{Inner: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/resolve-apt", bytes.NewReader(body))
	if err != nil {
		return nil, &DepServerError{Inner: err}
	}
	httpReq.Header.Set("User-Agent", ognibuild.UserAgent)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &DepServerError{Inner: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		if resp.Header.Get("Reason") == "family-unknown" {
			return nil, &RequirementFamilyUnknown{Family: req.Family()}
		}
		return nil, &DepServerError{Inner: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &DepServerError{Inner: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var packages []string
	if err := json.NewDecoder(resp.Body).Decode(&packages); err != nil {
		return nil, &DepServerError{Inner: err}
	}
	return packages, nil
}

// DepServerClient resolves requirements to apt package names via a remote
// dep-server, installing the result with Apt; it falls back to Local (a
// FileIndex-backed *AptResolver) on any error from the server, an
// unreachable server and a family-unknown reply among them. Grounded on
// DepServerAptResolver.
type DepServerClient struct {
	BaseURL string
	Apt     *AptManager
	Local   *AptResolver
	Client  *http.Client
}

// NewDepServerClient builds a DepServerClient with a bounded-timeout HTTP
// client, since dep-server resolution happens inline in a build loop.
func NewDepServerClient(baseURL string, apt *AptManager, local *AptResolver) *DepServerClient {
	return &DepServerClient{
		BaseURL: baseURL,
		Apt:     apt,
		Local:   local,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *DepServerClient) String() string         { return "dep-server(" + c.BaseURL + ")" }
func (c *DepServerClient) Env() map[string]string { return nil }

// resolve returns the apt packages that satisfy req, consulting the
// remote server first and falling back to Local on any error.
func (c *DepServerClient) resolve(req requirement.Requirement) ([]string, error) {
	packages, err := resolveAptRequirementDepServer(context.Background(), c.Client, c.BaseURL, req)
	if err == nil {
		return packages, nil
	}
	if c.Local == nil {
		return nil, err
	}
	pkg, lerr := c.Local.resolve(req)
	if lerr != nil {
		return nil, lerr
	}
	return []string{pkg}, nil
}

func (c *DepServerClient) Install(reqs []requirement.Requirement) error {
	var packages []string
	var unresolved []requirement.Requirement
	for _, req := range reqs {
		pkgs, err := c.resolve(req)
		if err != nil {
			unresolved = append(unresolved, req)
			continue
		}
		packages = append(packages, pkgs...)
	}
	if len(packages) > 0 {
		if err := c.Apt.Install(packages); err != nil {
			return fmt.Errorf("resolver: apt install %v: %w", packages, err)
		}
	}
	if len(unresolved) > 0 {
		return &UnsatisfiedRequirements{Requirements: unresolved}
	}
	return nil
}

func (c *DepServerClient) Explain(reqs []requirement.Requirement) ([]string, error) {
	var packages []string
	for _, req := range reqs {
		pkgs, err := c.resolve(req)
		if err != nil {
			continue
		}
		packages = append(packages, pkgs...)
	}
	if len(packages) == 0 {
		return nil, nil
	}
	return []string{"apt -y install " + joinArgs(packages)}, nil
}
