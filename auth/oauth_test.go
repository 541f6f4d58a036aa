package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drengskapur/mcp-go/auth"
)

func newMockServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	var meta auth.Metadata

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("MCP-Protocol-Version") == "" {
			http.Error(w, "missing protocol version header", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(meta)
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.FormValue("grant_type") {
		case "authorization_code":
			if r.FormValue("code") != "test-code" || r.FormValue("code_verifier") == "" {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "test-access-token",
				"token_type":    "Bearer",
				"refresh_token": "test-refresh-token",
			})
		case "refresh_token":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "refreshed-access-token",
				"token_type":   "Bearer",
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "unsupported_grant_type"})
		}
	})

	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"client_id":   "registered-client-id",
			"client_name": req["client_name"],
		})
	})

	server := httptest.NewServer(mux)
	meta = auth.Metadata{
		Issuer:                        server.URL,
		AuthorizationEndpoint:         server.URL + "/authorize",
		TokenEndpoint:                 server.URL + "/token",
		RegistrationEndpoint:          server.URL + "/register",
		ResponseTypesSupported:        []string{"code"},
		CodeChallengeMethodsSupported: []string{"S256"},
	}
	return server
}

func TestDiscoverReturnsMetadata(t *testing.T) {
	server := newMockServer(t)
	defer server.Close()

	meta, err := auth.Discover(context.Background(), nil, server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if meta.TokenEndpoint != server.URL+"/token" {
		t.Errorf("unexpected token endpoint: %s", meta.TokenEndpoint)
	}
}

func TestDiscoverReturnsNilOn404(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	meta, err := auth.Discover(context.Background(), nil, server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if meta != nil {
		t.Errorf("expected nil metadata on 404, got %+v", meta)
	}
}

func TestStartAuthorizationRejectsUnsupportedChallengeMethod(t *testing.T) {
	meta := &auth.Metadata{
		AuthorizationEndpoint:         "https://example.test/authorize",
		ResponseTypesSupported:        []string{"code"},
		CodeChallengeMethodsSupported: []string{"plain"},
	}
	_, err := auth.StartAuthorization(meta, "client-id", "https://example.test/callback")
	if err == nil || !strings.Contains(err.Error(), "S256") {
		t.Fatalf("expected S256 error, got %v", err)
	}
}

func TestStartAuthorizationBuildsURLWithChallenge(t *testing.T) {
	meta := &auth.Metadata{
		AuthorizationEndpoint:         "https://example.test/authorize",
		ResponseTypesSupported:        []string{"code"},
		CodeChallengeMethodsSupported: []string{"S256"},
	}
	result, err := auth.StartAuthorization(meta, "client-id", "https://example.test/callback", "profile")
	if err != nil {
		t.Fatal(err)
	}
	if result.PKCE.Verifier == "" || result.PKCE.Challenge == "" {
		t.Fatal("expected a populated PKCE challenge")
	}
	if !strings.Contains(result.URL, "code_challenge_method=S256") {
		t.Errorf("expected code_challenge_method=S256 in URL: %s", result.URL)
	}
}

func TestExchangeAndRefresh(t *testing.T) {
	server := newMockServer(t)
	defer server.Close()

	meta, err := auth.Discover(context.Background(), nil, server.URL)
	if err != nil {
		t.Fatal(err)
	}

	token, err := auth.Exchange(context.Background(), nil, meta, "client-id", "test-code", "https://example.test/callback", "verifier")
	if err != nil {
		t.Fatal(err)
	}
	if token.AccessToken != "test-access-token" {
		t.Errorf("unexpected access token: %s", token.AccessToken)
	}

	refreshed, err := auth.Refresh(context.Background(), nil, meta, "client-id", token.RefreshToken)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.AccessToken != "refreshed-access-token" {
		t.Errorf("unexpected refreshed token: %s", refreshed.AccessToken)
	}
}

func TestRegister(t *testing.T) {
	server := newMockServer(t)
	defer server.Close()

	meta, err := auth.Discover(context.Background(), nil, server.URL)
	if err != nil {
		t.Fatal(err)
	}

	reg, err := auth.Register(context.Background(), nil, meta, "test-app", []string{"https://example.test/callback"})
	if err != nil {
		t.Fatal(err)
	}
	if reg.ClientID != "registered-client-id" {
		t.Errorf("unexpected client id: %s", reg.ClientID)
	}
}

func TestRegisterFailsWithoutEndpoint(t *testing.T) {
	meta := &auth.Metadata{}
	_, err := auth.Register(context.Background(), nil, meta, "test-app", nil)
	if err == nil {
		t.Fatal("expected error when registration_endpoint is absent")
	}
}

func TestRegisterFailsOnNon2xx(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	meta := &auth.Metadata{RegistrationEndpoint: server.URL + "/register"}
	_, err := auth.Register(context.Background(), nil, meta, "test-app", nil)
	if err == nil || !strings.Contains(err.Error(), "Dynamic client registration failed") {
		t.Fatalf("expected 'Dynamic client registration failed' error, got %v", err)
	}
}
