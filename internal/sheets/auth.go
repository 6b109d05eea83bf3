package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const spreadsheetScope = "https://www.googleapis.com/auth/spreadsheets"

// ServiceAccountTokens exchanges a signed RS256 assertion for a short-lived
// bearer token and caches it until shortly before expiry.
type ServiceAccountTokens struct {
	TokenURL string
	Email    string
	HTTP     *http.Client

	key *jwt.SigningMethodRSA

	mu      sync.Mutex
	signKey any
	token   string
	expiry  time.Time
}

// NewServiceAccountTokens parses the PEM private key and returns a token
// source for the spreadsheet scope. The \n-escaped form that env vars carry
// is accepted as-is.
func NewServiceAccountTokens(tokenURL, email, privateKeyPEM string) (*ServiceAccountTokens, error) {
	if email == "" || privateKeyPEM == "" {
		return nil, fmt.Errorf("service account email and key required")
	}
	pem := strings.ReplaceAll(privateKeyPEM, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return &ServiceAccountTokens{
		TokenURL: tokenURL,
		Email:    email,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		key:      jwt.SigningMethodRS256,
		signKey:  key,
	}, nil
}

// Token returns a cached bearer token, refreshing when within a minute of
// expiry.
func (s *ServiceAccountTokens) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Until(s.expiry) > time.Minute {
		return s.token, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.Email,
		"scope": spreadsheetScope,
		"aud":   s.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(s.key, claims).SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("token exchange failed: %s", resp.Status)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned empty token")
	}

	s.token = out.AccessToken
	s.expiry = now.Add(time.Duration(out.ExpiresIn) * time.Second)
	return s.token, nil
}
