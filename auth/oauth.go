// Package auth implements the OAuth 2.1 + PKCE client-side authorization
// helper used to obtain bearer tokens for an MCP connection. It is a pure
// HTTP request-shaping layer around a well-known metadata document (RFC
// 8414) and dynamic client registration (RFC 7591); it does not issue or
// verify tokens itself.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// protocolVersion is sent as the MCP-Protocol-Version header on discovery
// requests, matching the engine's negotiated protocol date-stamp.
const protocolVersion = "2024-11-05"

// Metadata is the OAuth 2.0 Authorization Server Metadata document
// returned from the well-known discovery endpoint (RFC 8414).
type Metadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
}

// Registration is the response to dynamic client registration (RFC 7591).
type Registration struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at,omitempty"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
}

// Token is the response from the token endpoint.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// PKCE holds a generated code verifier and its S256 challenge.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string // always "S256"
}

// Authorization is the result of StartAuthorization: the URL to send the
// resource owner to, plus the PKCE verifier the caller must hold onto
// until Exchange.
type Authorization struct {
	URL  string
	PKCE PKCE
}

func httpClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return http.DefaultClient
}

// Discover fetches the OAuth 2.0 Authorization Server Metadata for base's
// origin. It returns (nil, nil) on a 404 — meaning the server doesn't
// advertise OAuth support — and an error on any other non-2xx status or
// malformed body (spec §4.8).
func Discover(ctx context.Context, client *http.Client, base string) (*Metadata, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid server URL: %w", err)
	}
	wellKnown := fmt.Sprintf("%s://%s/.well-known/oauth-authorization-server", u.Scheme, u.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("MCP-Protocol-Version", protocolVersion)

	resp, err := httpClient(client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: discovery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("auth: discovery returned %s", resp.Status)
	}

	var meta Metadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("auth: discovery response is not valid JSON: %w", err)
	}
	if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
		return nil, fmt.Errorf("auth: discovery response missing authorization_endpoint or token_endpoint")
	}
	return &meta, nil
}

// StartAuthorization builds the authorization-code-with-PKCE request URL.
// It requires the server to advertise both "code" in
// response_types_supported and "S256" in code_challenge_methods_supported;
// a server that advertises neither cannot complete this flow.
func StartAuthorization(meta *Metadata, clientID, redirectURI string, scopes ...string) (*Authorization, error) {
	if !contains(meta.ResponseTypesSupported, "code") {
		return nil, fmt.Errorf("auth: server does not support the authorization_code response type")
	}
	if !contains(meta.CodeChallengeMethodsSupported, "S256") {
		return nil, fmt.Errorf("auth: server does not support S256 PKCE challenges")
	}

	pkce, err := newPKCE()
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"code_challenge":        {pkce.Challenge},
		"code_challenge_method": {pkce.Method},
	}
	if len(scopes) > 0 {
		params.Set("scope", strings.Join(scopes, " "))
	}

	return &Authorization{
		URL:  meta.AuthorizationEndpoint + "?" + params.Encode(),
		PKCE: *pkce,
	}, nil
}

// Exchange trades an authorization code and its PKCE verifier for a token
// at meta's token endpoint.
func Exchange(ctx context.Context, client *http.Client, meta *Metadata, clientID, code, redirectURI, verifier string) (*Token, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {verifier},
	}
	return tokenRequest(ctx, client, meta.TokenEndpoint, form)
}

// Refresh trades a refresh token for a new access token at meta's token
// endpoint.
func Refresh(ctx context.Context, client *http.Client, meta *Metadata, clientID, refreshToken string) (*Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {clientID},
		"refresh_token": {refreshToken},
	}
	return tokenRequest(ctx, client, meta.TokenEndpoint, form)
}

// Register performs dynamic client registration (RFC 7591) against meta's
// registration_endpoint. It returns an error whose message begins with
// "Dynamic client registration failed" on any non-2xx response, and a
// distinct error if the endpoint is absent from the metadata (spec §4.8).
func Register(ctx context.Context, client *http.Client, meta *Metadata, clientName string, redirectURIs []string) (*Registration, error) {
	if meta.RegistrationEndpoint == "" {
		return nil, fmt.Errorf("auth: server does not advertise a registration_endpoint")
	}

	body, err := json.Marshal(map[string]any{
		"client_name":                clientName,
		"redirect_uris":              redirectURIs,
		"grant_types":                []string{"authorization_code", "refresh_token"},
		"response_types":             []string{"code"},
		"token_endpoint_auth_method": "none",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, meta.RegistrationEndpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient(client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("Dynamic client registration failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("Dynamic client registration failed: server returned %s", resp.Status)
	}

	var reg Registration
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, fmt.Errorf("Dynamic client registration failed: invalid response: %w", err)
	}
	if reg.ClientID == "" {
		return nil, fmt.Errorf("Dynamic client registration failed: missing client_id")
	}
	return &reg, nil
}

func tokenRequest(ctx context.Context, client *http.Client, endpoint string, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient(client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if desc, ok := errBody["error_description"]; ok {
			return nil, fmt.Errorf("auth: token request failed: %s: %v", resp.Status, desc)
		}
		return nil, fmt.Errorf("auth: token request failed: %s", resp.Status)
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("auth: token response is not valid JSON: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("auth: token response missing access_token")
	}
	return &token, nil
}

func newPKCE() (*PKCE, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("auth: generate PKCE verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)

	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	return &PKCE{Verifier: verifier, Challenge: challenge, Method: "S256"}, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
