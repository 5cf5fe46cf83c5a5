package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	domrepo "github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/service/ratelimit"
	pkghttp "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/http"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/logger"
)

// Client is the MarketSource backed by the terminal bridge REST API.
// The bridge process itself runs elsewhere; this is only the consumer
// of its contract.
type Client struct {
	baseURL string
	http    *pkghttp.Client
	limiter *ratelimit.Limiter
	rps     float64
	burst   float64
	l       *logger.Logger
}

type Option func(*Client)

// WithRateLimit caps outgoing requests per second with the given burst.
func WithRateLimit(rps, burst float64) Option {
	return func(c *Client) {
		c.rps = rps
		c.burst = burst
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http = pkghttp.NewClient(pkghttp.WithTimeout(timeout))
	}
}

func New(baseURL string, l *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    pkghttp.NewClient(),
		limiter: ratelimit.New(),
		rps:     10,
		burst:   20,
		l:       l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire schema of one bar from the bridge
type bridgeBar struct {
	Time   int64   `json:"time"` // unix seconds, minute start
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type bridgeBarsResponse struct {
	Symbol string      `json:"symbol"`
	Bars   []bridgeBar `json:"bars"`
}

// FetchRange pulls one-minute bars inside [r.Start, r.End) from the
// bridge. Connection failures, timeouts and 5xx answers surface as
// ErrSourceUnavailable so callers can retry; a 404 means the bridge
// does not know the symbol.
func (c *Client) FetchRange(ctx context.Context, symbol string, r models.TimeRange) ([]models.Bar, error) {
	var res bridgeBarsResponse
	err := c.get(ctx, "/api/v1/ohlcv", map[string][]string{
		"symbol":    {symbol},
		"timeframe": {"1m"},
		"from":      {strconv.FormatInt(r.Start.Unix(), 10)},
		"to":        {strconv.FormatInt(r.End.Unix(), 10)},
	}, &res)
	if err != nil {
		return nil, err
	}
	return c.toBars(symbol, res.Bars), nil
}

// FetchLatest pulls up to count most recent one-minute bars, ascending.
func (c *Client) FetchLatest(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	if count <= 0 {
		count = 1
	}
	var res bridgeBarsResponse
	err := c.get(ctx, "/api/v1/ohlcv/latest", map[string][]string{
		"symbol":    {symbol},
		"timeframe": {"1m"},
		"count":     {strconv.Itoa(count)},
	}, &res)
	if err != nil {
		return nil, err
	}
	return c.toBars(symbol, res.Bars), nil
}

// IsSymbolAvailable asks the bridge whether the terminal exposes the
// symbol. A 404 is a definitive no, not an error.
func (c *Client) IsSymbolAvailable(ctx context.Context, symbol string) (bool, error) {
	err := c.get(ctx, "/api/v1/symbols/"+symbol, nil, nil)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, models.ErrUnknownSymbol) {
		return false, nil
	}
	return false, err
}

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx, "bridge", c.burst, c.rps); err != nil {
		return err
	}

	resp, err := c.http.SendRequest(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
	})
	if err != nil {
		if isTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("bridge %s: %w", path, models.ErrSourceUnavailable)
		}
		var nerr net.Error
		if errors.As(err, &nerr) || errors.Is(err, io.EOF) {
			return fmt.Errorf("bridge %s: %w", path, models.ErrSourceUnavailable)
		}
		return fmt.Errorf("bridge %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("bridge %s: %w", path, models.ErrUnknownSymbol)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.l.Warn("bridge unavailable",
			logger.String("path", path),
			logger.Int("status", resp.StatusCode))
		return fmt.Errorf("bridge %s: status %d: %w", path, resp.StatusCode, models.ErrSourceUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bridge %s: status %d: %s", path, resp.StatusCode, body)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("bridge %s: decode: %w", path, err)
	}
	return nil
}

func (c *Client) toBars(symbol string, in []bridgeBar) []models.Bar {
	out := make([]models.Bar, 0, len(in))
	for _, b := range in {
		out = append(out, models.Bar{
			Symbol:    symbol,
			Timestamp: time.Unix(b.Time, 0).UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return out
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

var _ domrepo.MarketSource = (*Client)(nil)
