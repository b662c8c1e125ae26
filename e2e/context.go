package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"
)

const defaultAdminEmail = "admin@warden.local"

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	adminEmail string
	codes      map[string]string
	tokens     map[string]string
	userIDs    map[string]string
	server     *httptest.Server
}

// NewTestContext targets BASE_URL when set. The remote server must run in
// development mode so codes are echoed, and E2E_ADMIN_EMAIL must match its
// BOOTSTRAP_ADMIN_EMAIL. Without BASE_URL an in-process server is started.
func NewTestContext() (*TestContext, error) {
	tc := &TestContext{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		adminEmail: os.Getenv("E2E_ADMIN_EMAIL"),
		codes:      make(map[string]string),
		tokens:     make(map[string]string),
		userIDs:    make(map[string]string),
	}
	if tc.adminEmail == "" {
		tc.adminEmail = defaultAdminEmail
	}

	tc.BaseURL = os.Getenv("BASE_URL")
	if tc.BaseURL == "" {
		srv, err := startInProcess(tc.adminEmail)
		if err != nil {
			return nil, fmt.Errorf("start in-process server: %w", err)
		}
		tc.server = srv
		tc.BaseURL = srv.URL
	}
	return tc, nil
}

// Close stops the in-process server, if any.
func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
	}
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body any) error {
	return tc.POSTWithHeaders(path, body, nil)
}

// POSTWithHeaders makes a POST request with optional headers
func (tc *TestContext) POSTWithHeaders(path string, body any, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, tc.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, tc.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a field from the JSON response. Nested fields
// use dots, as in "user.id".
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for _, part := range strings.Split(field, ".") {
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
		if data, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
	}
	return data, nil
}

// GetResponseString is GetResponseField for string values.
func (tc *TestContext) GetResponseString(field string) (string, error) {
	v, err := tc.GetResponseField(field)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s is %T, not a string", field, v)
	}
	return s, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}
	_, err := tc.GetResponseField(text)
	return err == nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

func (tc *TestContext) AdminEmail() string { return tc.adminEmail }

func (tc *TestContext) SaveCode(identifier, code string) {
	tc.codes[strings.ToLower(identifier)] = code
}

func (tc *TestContext) Code(identifier string) (string, error) {
	code, ok := tc.codes[strings.ToLower(identifier)]
	if !ok {
		return "", fmt.Errorf("no code issued for %s in this scenario", identifier)
	}
	return code, nil
}

func (tc *TestContext) SaveToken(name, token string) { tc.tokens[name] = token }

func (tc *TestContext) Token(name string) (string, error) {
	token, ok := tc.tokens[name]
	if !ok {
		return "", fmt.Errorf("no token for %s in this scenario", name)
	}
	return token, nil
}

func (tc *TestContext) SaveUserID(username, userID string) { tc.userIDs[username] = userID }

func (tc *TestContext) UserID(username string) (string, error) {
	userID, ok := tc.userIDs[username]
	if !ok {
		return "", fmt.Errorf("no user id recorded for %s", username)
	}
	return userID, nil
}
