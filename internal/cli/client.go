package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"firma/internal/auth"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Signup(ctx context.Context, email, password, username string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
		"username": username,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refresh_token": refreshToken,
	}, &out, "")
	return out, err
}

func (c *Client) ListGames(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) StartGame(ctx context.Context, accessToken, companyName, industry, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games", accessToken, map[string]any{
		"company_name": companyName,
		"industry":     industry,
	}, &out, idem)
	return out, err
}

func (c *Client) GameDetail(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/"+url.PathEscape(gameID), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) DeleteGame(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodDelete, "/v1/games/"+url.PathEscape(gameID), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Advance(ctx context.Context, accessToken, gameID, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/advance", accessToken, map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) SetGameStatus(ctx context.Context, accessToken, gameID, op string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/games/%s/%s", url.PathEscape(gameID), op), accessToken, map[string]any{}, &out, "")
	return out, err
}

func (c *Client) ListDecisions(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/"+url.PathEscape(gameID)+"/decisions", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) MakeDecision(ctx context.Context, accessToken, gameID, decisionID string, params map[string]float64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/decisions", accessToken, map[string]any{
		"decision_id": decisionID,
		"params":      params,
	}, &out, idem)
	return out, err
}

func (c *Client) ListEvents(ctx context.Context, accessToken, gameID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/"+url.PathEscape(gameID)+"/events", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) RespondEvent(ctx context.Context, accessToken, gameID, instanceID, responseID, idem string) (map[string]any, error) {
	path := fmt.Sprintf("/v1/games/%s/events/%s/respond", url.PathEscape(gameID), url.PathEscape(instanceID))
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, path, accessToken, map[string]any{
		"response_id": responseID,
	}, &out, idem)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/leaderboard", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) MyStats(ctx context.Context, accessToken string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/me/stats", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) SyncReplay(ctx context.Context, accessToken string, commands []map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/sync/replay", accessToken, map[string]any{
		"commands": commands,
	}, &out, "")
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
