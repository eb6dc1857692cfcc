// Package edge calls the hosted edge functions and auth API that sit beside the store.
package edge

import (
	"context"
	"fmt"
	"time"

	"matchday/internal/models"
	"matchday/internal/observability"

	"resty.dev/v3"
)

const (
	fnPostMetrics      = "/post-metrics"
	fnProvisionAccount = "/provision-account"
	authUser           = "/user"
)

// Config points the client at the hosted services.
type Config struct {
	FunctionsURL string
	AuthURL      string
	ServiceKey   string
	Timeout      time.Duration
}

// Client is a thin resty wrapper. It is safe for concurrent use.
type Client struct {
	functions *resty.Client
	auth      *resty.Client
}

// Error is returned when a hosted function answers with a non-2xx status.
type Error struct {
	Function string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("edge function %s failed with status %d", e.Function, e.Status)
	}
	return fmt.Sprintf("edge function %s failed with status %d: %s", e.Function, e.Status, e.Message)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
}

func (b *errorBody) text() string {
	switch {
	case b == nil:
		return ""
	case b.Error != "":
		return b.Error
	case b.Message != "":
		return b.Message
	default:
		return b.Msg
	}
}

// NewClient returns a client for cfg.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	functions := resty.New().
		SetBaseURL(cfg.FunctionsURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.ServiceKey != "" {
		functions.SetAuthToken(cfg.ServiceKey).SetHeader("apikey", cfg.ServiceKey)
	}

	auth := resty.New().
		SetBaseURL(cfg.AuthURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.ServiceKey != "" {
		auth.SetHeader("apikey", cfg.ServiceKey)
	}

	return &Client{functions: functions, auth: auth}
}

// Close releases idle connections.
func (c *Client) Close() error {
	if err := c.functions.Close(); err != nil {
		return err
	}
	return c.auth.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.functions.R().WithContext(ctx)
}

func record(function string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.EdgeFunctionCalls.WithLabelValues(function, result).Inc()
}

func check(function string, res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("edge function %s: %w", function, err)
	}
	if res.IsError() {
		body, _ := res.Error().(*errorBody)
		return &Error{Function: function, Status: res.StatusCode(), Message: body.text()}
	}
	return nil
}

// PostMetrics asks the post-metrics function for a post's aggregate counters.
func (c *Client) PostMetrics(ctx context.Context, postID string) (metrics *models.PostMetrics, err error) {
	ctx, span := observability.StartClientSpan(ctx, "edge", "post-metrics")
	defer func() {
		record("post-metrics", err)
		observability.EndSpan(span, err)
	}()

	res, err := c.r(ctx).
		SetBody(map[string]string{"post_id": postID}).
		SetResult(&models.PostMetrics{}).
		SetError(&errorBody{}).
		Post(fnPostMetrics)
	if err = check("post-metrics", res, err); err != nil {
		return nil, err
	}
	return res.Result().(*models.PostMetrics), nil
}

// ProvisionAccount creates the profile row for a freshly signed-up user.
func (c *Client) ProvisionAccount(ctx context.Context, userID, username string) (err error) {
	ctx, span := observability.StartClientSpan(ctx, "edge", "provision-account")
	defer func() {
		record("provision-account", err)
		observability.EndSpan(span, err)
	}()

	res, err := c.r(ctx).
		SetBody(map[string]string{"user_id": userID, "username": username}).
		SetError(&errorBody{}).
		Post(fnProvisionAccount)
	return check("provision-account", res, err)
}

// UpdatePassword changes the password of the session identified by accessToken.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) (err error) {
	ctx, span := observability.StartClientSpan(ctx, "auth", "update-password")
	defer func() {
		record("update-password", err)
		observability.EndSpan(span, err)
	}()

	res, err := c.auth.R().WithContext(ctx).
		SetAuthToken(accessToken).
		SetBody(map[string]string{"password": password}).
		SetError(&errorBody{}).
		Put(authUser)
	return check("update-password", res, err)
}
