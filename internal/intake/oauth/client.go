// Package oauth keeps the OAuth2 session for an intake API in the database so
// that every process shares one refresh token.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/config"
	"github.com/smallbiznis/bootcamp/internal/intake/domain"
	"github.com/smallbiznis/bootcamp/internal/observability/metrics"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// expirySkew is taken off every upstream ttl.
const expirySkew = 10 * time.Second

const defaultTTL = time.Hour

// StatusError is a non-2xx answer from an intake API.
type StatusError struct {
	Source     catalogdomain.Source
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Source, e.StatusCode, e.Body)
}

func (e *StatusError) Upstream() string { return string(e.Source) }

// Temporary reports answers worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	source  catalogdomain.Source
	baseURL string
	seed    config.IntakeConfig
	conf    *oauth2.Config
	db      *gorm.DB
	repo    domain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	http    *http.Client
	log     *zap.Logger
}

type Params struct {
	Source     catalogdomain.Source
	Config     config.IntakeConfig
	DB         *gorm.DB
	Repo       domain.Repository
	GenID      *snowflake.Node
	Clock      clock.Clock
	HTTPClient *http.Client
	Log        *zap.Logger
}

func New(p Params) *Client {
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		source:  p.Source,
		baseURL: p.Config.BaseURL,
		seed:    p.Config,
		conf: &oauth2.Config{
			ClientID:     p.Config.ClientID,
			ClientSecret: p.Config.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: p.Config.TokenURL},
		},
		db:    p.DB,
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
		http:  httpClient,
		log:   p.Log.Named("intake.oauth").With(zap.String("source", string(p.Source))),
	}
}

// Do sends payload as JSON and returns the response body. A 401 reloads the
// session and retries once.
func (c *Client) Do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = raw
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	status, out, err := c.send(ctx, method, path, body, token.AccessToken)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.log.Warn("intake api rejected access token, reloading session", zap.String("path", path))
		token, err = c.refresh(ctx, token.AccessToken)
		if err != nil {
			return nil, err
		}
		status, out, err = c.send(ctx, method, path, body, token.AccessToken)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", domain.ErrAuthFailure, &StatusError{Source: c.source, StatusCode: status, Body: string(out)})
		}
	}
	if status/100 != 2 {
		return nil, &StatusError{Source: c.source, StatusCode: status, Body: string(out)}
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, accessToken string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, out, nil
}

// Token returns a live access token, refreshing it first when expired.
func (c *Client) Token(ctx context.Context) (*domain.Token, error) {
	row, err := c.repo.FindToken(ctx, c.db, c.source)
	if err != nil {
		return nil, err
	}
	if row != nil && !row.Expired(c.clock.Now()) {
		return row, nil
	}
	return c.refresh(ctx, "")
}

// refresh runs under a row lock so the single-use refresh token is spent at
// most once. With stale set the refresh is forced, unless another process
// already replaced that access token, in which case the persisted row wins.
func (c *Client) refresh(ctx context.Context, stale string) (*domain.Token, error) {
	if err := c.seedRow(ctx); err != nil {
		return nil, err
	}

	var out *domain.Token
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStart := time.Now()
		row, err := c.repo.FindTokenForUpdate(ctx, tx, c.source)
		metrics.Scheduler().ObserveDBLockWait(metrics.LockResourceIntakeToken, time.Since(lockStart))
		if err != nil {
			return err
		}
		if row == nil {
			return domain.ErrNoCredentials
		}
		now := c.clock.Now()
		if stale == "" && !row.Expired(now) {
			out = row
			return nil
		}
		if stale != "" && row.AccessToken != stale {
			out = row
			return nil
		}
		if row.RefreshToken == "" {
			return domain.ErrNoCredentials
		}

		exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, c.http)
		tok, err := c.conf.TokenSource(exchangeCtx, &oauth2.Token{RefreshToken: row.RefreshToken}).Token()
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) && re.Response != nil {
				return &StatusError{Source: c.source, StatusCode: re.Response.StatusCode, Body: string(re.Body)}
			}
			return err
		}

		ttl := tokenTTL(tok)
		row.AccessToken = tok.AccessToken
		if tok.RefreshToken != "" {
			row.RefreshToken = tok.RefreshToken
		}
		row.ExpiresOn = now.Add(ttl - expirySkew)
		row.UpdatedAt = now
		if err := c.repo.UpsertToken(ctx, tx, row); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		c.log.Error("intake token refresh failed", zap.Error(err))
		return nil, err
	}
	c.log.Info("intake token refreshed", zap.Time("expires_on", out.ExpiresOn))
	return out, nil
}

// seedRow stores the configured credentials the first time a source is used.
// The seeded access token is treated as expired.
func (c *Client) seedRow(ctx context.Context) error {
	if c.seed.RefreshToken == "" {
		return nil
	}
	now := c.clock.Now()
	return c.repo.SeedToken(ctx, c.db, &domain.Token{
		ID:           c.genID.Generate(),
		Source:       c.source,
		AccessToken:  c.seed.AccessToken,
		RefreshToken: c.seed.RefreshToken,
		ExpiresOn:    time.Unix(0, 0).UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// tokenTTL reads the lifetime from expires_in. oauth2 stamps Expiry with the
// wall clock, so it is only a fallback and is measured against wall time.
func tokenTTL(tok *oauth2.Token) time.Duration {
	switch {
	case tok.ExpiresIn > 0:
		return time.Duration(tok.ExpiresIn) * time.Second
	case !tok.Expiry.IsZero():
		return time.Until(tok.Expiry)
	default:
		return defaultTTL
	}
}
