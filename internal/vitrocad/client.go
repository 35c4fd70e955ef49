package vitrocad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"nexuschat/config"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

// API is the surface of the VitroCAD document server the rest of the
// application depends on. Tests substitute an in-memory fake.
type API interface {
	Login(ctx context.Context, login, password string) (*Account, error)
	GetCurrentUser(ctx context.Context, token string) (*Account, error)
	GetItem(ctx context.Context, token, itemID string) (*Item, error)
	GetList(ctx context.Context, token, listID string) ([]Item, error)
	GetItemPermissions(ctx context.Context, token, itemID string) ([]Permission, error)
}

// Client talks to a VitroCAD server over its JSON API. All endpoints are
// POST and authenticate with the raw session token in the Authorization
// header.
type Client struct {
	baseURL    string
	apiPath    string
	httpClient *http.Client
	logger     *logger.Logger
}

var _ API = (*Client)(nil)

func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.VitroCADBaseURL,
		apiPath: cfg.VitroCADAPIPath,
		httpClient: &http.Client{
			Timeout: cfg.VitroCADTimeout,
		},
		logger: log,
	}
}

func (c *Client) Login(ctx context.Context, login, password string) (*Account, error) {
	body := map[string]any{"login": login, "password": password, "remember": true}
	var acc Account
	if err := c.post(ctx, "", "/security/login", body, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *Client) GetCurrentUser(ctx context.Context, token string) (*Account, error) {
	var acc Account
	if err := c.post(ctx, token, "/security/getCurrentUser", nil, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *Client) GetItem(ctx context.Context, token, itemID string) (*Item, error) {
	var item Item
	if err := c.post(ctx, token, "/item/get/"+itemID, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) GetList(ctx context.Context, token, listID string) ([]Item, error) {
	var items []Item
	if err := c.post(ctx, token, "/item/getList/"+listID, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) GetItemPermissions(ctx context.Context, token, itemID string) ([]Permission, error) {
	var perms []Permission
	if err := c.post(ctx, token, "/security/getItemPermissionList/"+itemID, nil, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

func (c *Client) post(ctx context.Context, token, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	url := c.baseURL + c.apiPath + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warnf("vitrocad request failed: %s: %v", path, err)
		return fmt.Errorf("%w: %v", nexus_errors.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nexus_errors.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nexus_errors.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", nexus_errors.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", nexus_errors.ErrInvalidInput, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", nexus_errors.ErrServiceUnavailable, err)
	}
	return nil
}
