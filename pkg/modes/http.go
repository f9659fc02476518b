package modes

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// HTTPAuthority talks to a mode service:
//
//	GET  /modes?app=x   -> {"modes":["standard","performance"]}
//	POST /modes/active  <- {"app":"x","mode":"performance"}
type HTTPAuthority struct {
	base   string
	client *http.Client
}

type (
	// ModesResponse lists mode names, names this build doesn't know are skipped.
	ModesResponse struct {
		Modes []string `json:"modes"`
	}
	ActivateRequest struct {
		App  string `json:"app"`
		Mode Mode   `json:"mode"`
	}
)

// NewHTTPAuthority makes a client for the mode service at the address,
// timeout 0 means no timeout.
func NewHTTPAuthority(address string, timeout time.Duration) *HTTPAuthority {
	return &HTTPAuthority{base: address, client: &http.Client{Timeout: timeout}}
}

func (h *HTTPAuthority) AvailableModes(ctx context.Context, app string) ([]Mode, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/modes?app="+url.QueryEscape(app), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mode service: %s", resp.Status)
	}
	var out ModesResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mode service: %w", err)
	}
	return ParseList(out.Modes), nil
}

func (h *HTTPAuthority) Activate(ctx context.Context, app string, mode Mode) error {
	body, err := json.Marshal(ActivateRequest{App: app, Mode: mode})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/modes/active", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("mode service: %s", resp.Status)
	}
	return nil
}
