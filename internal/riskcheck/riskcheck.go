// Package riskcheck asks an external risk list whether an identity is
// delinquent before it may open a wallet.
package riskcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrUnavailable is returned when the risk list cannot give an answer. It
// must never be treated as a pass.
var ErrUnavailable = errors.New("risk check unavailable")

const notFoundMessage = "Identity not found in karma"

// Result is the verdict for one identity.
type Result struct {
	Clear  bool
	Reason string
}

// Checker looks up an identity on a risk list.
type Checker interface {
	CheckIdentity(ctx context.Context, identity string) (Result, error)
}

// Disabled approves every identity. It is wired when the lookup is turned off.
type Disabled struct{}

func (Disabled) CheckIdentity(context.Context, string) (Result, error) {
	return Result{Clear: true}, nil
}

// KarmaClient queries the Adjutor karma blacklist.
type KarmaClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewKarmaClient builds a client with a per-request timeout.
func NewKarmaClient(baseURL, secret string, timeout time.Duration) *KarmaClient {
	return &KarmaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

// CheckIdentity reports Clear only when the service says the identity is
// unknown to it. A hit is not clear; anything else is ErrUnavailable.
func (k *KarmaClient) CheckIdentity(ctx context.Context, identity string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/"+url.PathEscape(identity), nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+k.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if !gjson.ValidBytes(body) {
		return Result{}, fmt.Errorf("%w: status %d with non-json body", ErrUnavailable, resp.StatusCode)
	}

	message := gjson.GetBytes(body, "message").String()
	switch {
	case resp.StatusCode == http.StatusNotFound && message == notFoundMessage:
		return Result{Clear: true}, nil
	case resp.StatusCode == http.StatusOK && gjson.GetBytes(body, "data.karma_identity").Exists():
		reason := gjson.GetBytes(body, "data.karma_type.karma").String()
		if reason == "" {
			reason = "identity is on the karma list"
		}
		return Result{Clear: false, Reason: reason}, nil
	default:
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, message)
	}
}
