/*
Package client is the viewer side of blip: the HTTP API client, the live WebSocket feed, the
de-duplicating message view and the viewer profile (identity, fallback name, display name).
*/
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"blip/internal/app/chat"
	"blip/internal/app/registry"
	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
	"blip/internal/pkg/resp"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 10 * time.Second

// API talks to the blip server's HTTP API.
type API struct {
	http    *resty.Client
	baseURL string
	logger  zerolog.Logger
}

// NewAPI returns a client for the server at baseURL.
func NewAPI(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL = strings.TrimRight(baseURL, "/")
	logger := logx.Component("API")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "blip-cli").
		SetHeader("Accept", "application/json")

	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug().Str("method", req.Method).Str("url", req.URL).Msg("HTTP Request")
		return nil
	})

	httpClient.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		logger.Debug().Int("status", res.StatusCode()).Dur("elapsed", res.Time()).Msg("HTTP Response")
		return nil
	})

	return &API{http: httpClient, baseURL: baseURL, logger: logger}
}

// BaseURL returns the server address the client was built with.
func (a *API) BaseURL() string {
	return a.baseURL
}

// do executes the request and decodes the envelope data into out (which may be nil).
// A non-zero envelope code comes back as a *errs.CustomError.
func (a *API) do(ctx context.Context, method, path string, body any, query url.Values, out any) error {
	req := a.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errs.NewError(errs.ErrStaleView)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var env resp.Envelope
	if err := json.Unmarshal(res.Body(), &env); err != nil {
		return fmt.Errorf("%s %s: unexpected %s response: %w", method, path, res.Status(), err)
	}

	if env.Code != 0 {
		return errs.FromCode(env.Code, env.Message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}

type sendMessageRequest struct {
	UserID     string `json:"userId"`
	AuthorName string `json:"authorName"`
	Message    string `json:"message"`
}

type nameRequest struct {
	DisplayName string              `json:"displayName"`
	UserID      string              `json:"userId"`
	NameStyle   *registry.NameStyle `json:"nameStyle,omitempty"`
}

// History returns the whole chat log, oldest first.
func (a *API) History(ctx context.Context) ([]chat.Message, error) {
	var out struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/chat/messages", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Send posts a message.
func (a *API) Send(ctx context.Context, userID, authorName, text string) (chat.Message, error) {
	var out chat.Message
	err := a.do(ctx, http.MethodPost, "/api/chat/messages", sendMessageRequest{
		UserID:     userID,
		AuthorName: authorName,
		Message:    text,
	}, nil, &out)
	return out, err
}

// AuthorNameUsed reports whether any message was sent under name.
func (a *API) AuthorNameUsed(ctx context.Context, name string) (bool, error) {
	var out struct {
		Used bool `json:"used"`
	}
	err := a.do(ctx, http.MethodGet, "/api/chat/authors/used", nil, url.Values{"name": {name}}, &out)
	return out.Used, err
}

// ValidateName runs the server's advisory availability check.
func (a *API) ValidateName(ctx context.Context, name, userID string) (registry.Result, error) {
	var out registry.Result
	err := a.do(ctx, http.MethodPost, "/api/names/validate", nameRequest{DisplayName: name, UserID: userID}, nil, &out)
	return out, err
}

// ClaimName records name for userID. A nil style keeps the current one.
func (a *API) ClaimName(ctx context.Context, name, userID string, style *registry.NameStyle) (registry.Record, error) {
	var out registry.Record
	err := a.do(ctx, http.MethodPost, "/api/names/claim", nameRequest{DisplayName: name, UserID: userID, NameStyle: style}, nil, &out)
	return out, err
}

// LookupName returns the registered record of userID.
func (a *API) LookupName(ctx context.Context, userID string) (registry.Record, error) {
	var out registry.Record
	err := a.do(ctx, http.MethodGet, "/api/names/"+url.PathEscape(userID), nil, nil, &out)
	return out, err
}

// LogVisit reports a visit of userID; the server decides whether it is recorded.
func (a *API) LogVisit(ctx context.Context, userID string) (bool, error) {
	var out struct {
		Logged bool `json:"logged"`
	}
	err := a.do(ctx, http.MethodPost, "/api/logUser", map[string]string{"user_id": userID}, nil, &out)
	return out.Logged, err
}
