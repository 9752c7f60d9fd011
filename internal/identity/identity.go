package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var ErrVerifyFailed = errors.New("token verification failed")

// Identity is what a live connection resolves to: guest by default, upgraded
// to an authenticated account by a successful auth message.
type Identity struct {
	ConnID string
	UID    string
	Name   string
	Authed bool
}

// NewGuest mints a fresh guest identity for a new connection.
func NewGuest() Identity {
	id := uuid.NewString()
	return Identity{
		ConnID: id,
		UID:    "guest_" + id[:8],
		Name:   "Guest",
		Authed: false,
	}
}

// Verifier checks an auth token with the external identity service.
type Verifier interface {
	Verify(ctx context.Context, token string) (uid, displayName string, err error)
}

// HTTPVerifier posts the token to a verification endpoint and expects
// {uid, displayName} back.
type HTTPVerifier struct {
	URL    string
	Client *http.Client
}

func NewHTTPVerifier(url string) *HTTPVerifier {
	return &HTTPVerifier{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (string, string, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.URL, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", ErrVerifyFailed
	}

	var out struct {
		UID         string `json:"uid"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.UID == "" {
		return "", "", ErrVerifyFailed
	}
	return out.UID, out.DisplayName, nil
}

// StaticVerifier resolves tokens from a fixed map. Used in tests and when no
// verification endpoint is configured.
type StaticVerifier map[string]Identity

func (v StaticVerifier) Verify(_ context.Context, token string) (string, string, error) {
	id, ok := v[token]
	if !ok {
		return "", "", ErrVerifyFailed
	}
	return id.UID, id.Name, nil
}

// RejectAll fails every token. The default when AUTH_VERIFY_URL is unset.
type RejectAll struct{}

func (RejectAll) Verify(context.Context, string) (string, string, error) {
	return "", "", ErrVerifyFailed
}
