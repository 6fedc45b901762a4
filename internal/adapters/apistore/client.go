// Package apistore persists backtest state to the external data-access API.
// The client is an explicit object carrying its base URL and retry policy;
// there is no process-wide request state.
package apistore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/backtester/internal/domain"
	"github.com/alejandrodnm/backtester/internal/ports"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 3 * time.Second
)

// Config tunes the client.
type Config struct {
	BaseURL     string
	MaxAttempts int
	RetryDelay  time.Duration
}

// Client implements ports.RunStore against the data-access API. Connection
// failures retry with a fixed delay; once the attempt budget is exhausted
// the error is returned and the run halts.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a client for the API at cfg.BaseURL.
func NewClient(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// InitRun registers a new backtest run.
func (c *Client) InitRun(ctx context.Context, snap ports.RunSnapshot) error {
	_, err := c.do(ctx, http.MethodPut, "/backtest_properties/initialise", snapshotBody(snap))
	return err
}

// UpdateDate advances the persisted simulation date.
func (c *Client) UpdateDate(ctx context.Context, runID string, date time.Time) error {
	body := map[string]any{
		"backtest_id":   runID,
		"backtest_date": date.Format("2006-01-02"),
	}
	_, err := c.do(ctx, http.MethodPatch, "/backtest_properties/date", body)
	return err
}

// SaveTrade creates a trade record and returns the identifier the store
// generated for it.
func (c *Client) SaveTrade(ctx context.Context, runID string, trade *domain.Trade) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/trades/"+runID, tradeBody(trade))
	if err != nil {
		return "", err
	}
	var out struct {
		TradeID string `json:"trade_id"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		// The trade was stored; keep the client-side id.
		slog.Warn("could not decode trade id from store", "err", err)
		return "", nil
	}
	return out.TradeID, nil
}

// SyncTrades upserts the open and newly closed trade sets.
func (c *Client) SyncTrades(ctx context.Context, runID string, open, closed []*domain.Trade) error {
	body := map[string]any{
		"open_trades":   tradeBodies(open),
		"closed_trades": tradeBodies(closed),
	}
	_, err := c.do(ctx, http.MethodPut, "/trades/"+runID, body)
	return err
}

// UpdateProperties upserts the run's portfolio snapshot.
func (c *Client) UpdateProperties(ctx context.Context, snap ports.RunSnapshot) error {
	_, err := c.do(ctx, http.MethodPut, "/backtests/"+snap.RunID, snapshotBody(snap))
	return err
}

// do sends one JSON request, retrying transport failures with a fixed delay
// up to the attempt budget. A 4xx/5xx response is surfaced as an error.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("apistore.do: marshal %s %s: %w", method, endpoint, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("apistore.do: build %s %s: %w", method, endpoint, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.cfg.MaxAttempts {
				slog.Warn("could not reach data-access API, retrying",
					"endpoint", endpoint,
					"attempt", attempt,
					"delay", c.cfg.RetryDelay,
				)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(c.cfg.RetryDelay):
				}
			}
			continue
		}

		var buf bytes.Buffer
		_, readErr := buf.ReadFrom(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("apistore.do: %s %s: status %d", method, endpoint, resp.StatusCode)
		}
		if readErr != nil {
			return nil, fmt.Errorf("apistore.do: %s %s: read body: %w", method, endpoint, readErr)
		}
		if attempt > 1 {
			slog.Info("data-access API request succeeded after retries",
				"endpoint", endpoint, "attempts", attempt)
		}
		return buf.Bytes(), nil
	}

	return nil, fmt.Errorf("apistore.do: %s %s: %d attempts exhausted: %w",
		method, endpoint, c.cfg.MaxAttempts, lastErr)
}

func snapshotBody(snap ports.RunSnapshot) map[string]any {
	return map[string]any{
		"backtest_id":           snap.RunID,
		"backtest_date":         snap.Date.Format("2006-01-02"),
		"start_balance":         snap.Portfolio.StartBalance,
		"total_balance":         snap.Portfolio.TotalBalance,
		"available_balance":     snap.Portfolio.AvailableBalance,
		"total_profit_loss":     snap.Portfolio.TotalProfitLoss,
		"total_profit_loss_pct": snap.Portfolio.TotalProfitLossPct,
		"profit_loss_graph":     json.RawMessage(snap.ProfitLossGraph),
	}
}

func tradeBody(t *domain.Trade) map[string]any {
	body := map[string]any{
		"trade_id":             t.ID,
		"ticker":               t.Ticker,
		"buy_date":             t.BuyDate.Format("2006-01-02"),
		"buy_price":            t.BuyPrice,
		"share_qty":            t.ShareQty,
		"investment_total":     t.InvestmentTotal,
		"take_profit":          t.TakeProfit,
		"stop_loss":            t.StopLoss,
		"current_price":        t.CurrentPrice,
		"profit_loss":          t.ProfitLoss,
		"profit_loss_pct":      t.ProfitLossPct,
		"triggered_indicators": t.TriggeredIndicators,
		"figure":               json.RawMessage(t.Figure),
	}
	if t.SellDate != nil {
		body["sell_date"] = t.SellDate.Format("2006-01-02")
	}
	if t.SellPrice != nil {
		body["sell_price"] = *t.SellPrice
	}
	return body
}

func tradeBodies(trades []*domain.Trade) []map[string]any {
	out := make([]map[string]any, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeBody(t))
	}
	return out
}
