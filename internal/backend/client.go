package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/dgnsrekt/coindash/internal/metrics"
	"github.com/shopspring/decimal"
)

const maxErrorBody = 512

// Cache stores raw market responses keyed by request URL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Client consumes the price backend and the public market-data source.
type Client struct {
	backendURL string
	marketURL  string
	http       *http.Client
	cache      Cache
}

// NewClient creates a Client. A nil httpClient uses http.DefaultClient.
func NewClient(backendURL, marketURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		backendURL: strings.TrimRight(backendURL, "/"),
		marketURL:  strings.TrimRight(marketURL, "/"),
		http:       httpClient,
	}
}

// SetCache enables response caching for market-data requests.
func (c *Client) SetCache(cache Cache) {
	c.cache = cache
}

// Prices fetches current quotes and alert state.
func (c *Client) Prices(ctx context.Context) (PriceSnapshot, error) {
	start := time.Now()
	body, err := c.get(ctx, c.backendURL+"/api/prices")
	if err == nil {
		var snap PriceSnapshot
		snap, err = parsePrices(body)
		metrics.ObserveBackend("prices", start, err)
		return snap, err
	}
	metrics.ObserveBackend("prices", start, err)
	return PriceSnapshot{}, err
}

// History fetches the backend's default-week history for a coin.
func (c *Client) History(ctx context.Context, coinID string) (History, error) {
	start := time.Now()
	body, err := c.get(ctx, c.backendURL+"/api/history/"+url.PathEscape(coinID))
	if err != nil {
		metrics.ObserveBackend("history", start, err)
		return History{}, err
	}

	var h History
	if err := json.Unmarshal(body, &h); err != nil {
		err = newError(CodeMalformedResponse, fmt.Sprintf("history [%s]: invalid JSON", coinID), err)
		metrics.ObserveBackend("history", start, err)
		return History{}, err
	}
	if h.Prices == nil {
		err = newError(CodeMalformedResponse, fmt.Sprintf("history [%s]: response has no prices", coinID), nil)
		metrics.ObserveBackend("history", start, err)
		return History{}, err
	}
	metrics.ObserveBackend("history", start, nil)
	return h, nil
}

// SetAlert posts a new alert threshold.
func (c *Client) SetAlert(ctx context.Context, price decimal.Decimal) (AlertAck, error) {
	start := time.Now()
	ack, err := c.setAlert(ctx, price)
	metrics.ObserveBackend("set_alert", start, err)
	return ack, err
}

func (c *Client) setAlert(ctx context.Context, price decimal.Decimal) (AlertAck, error) {
	payload, err := json.Marshal(struct {
		Price json.Number `json:"price"`
	}{Price: json.Number(price.String())})
	if err != nil {
		return AlertAck{}, newError(CodeValidation, "encode alert request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backendURL+"/api/set-alert", bytes.NewReader(payload))
	if err != nil {
		return AlertAck{}, newError(CodeNetworkFailure, "build alert request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AlertAck{}, newError(CodeNetworkFailure, "set alert: HTTP request failed", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("set alert body close failed", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AlertAck{}, newError(CodeNetworkFailure, "set alert: body read error", err)
	}

	var parsed struct {
		Status       string              `json:"status"`
		NewThreshold decimal.NullDecimal `json:"new_threshold"`
		Error        string              `json:"error"`
	}
	jsonErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AlertAck{}, rejection("set alert", resp, body)
	}
	if jsonErr != nil {
		return AlertAck{}, newError(CodeMalformedResponse, "set alert: invalid JSON", jsonErr)
	}
	if parsed.Error != "" {
		return AlertAck{}, &CodedError{Code: CodeServerRejection, Message: parsed.Error, Status: resp.StatusCode}
	}
	if parsed.Status != "success" && !parsed.NewThreshold.Valid {
		return AlertAck{}, newError(CodeMalformedResponse, "set alert: response has neither status nor new_threshold", nil)
	}

	ack := AlertAck{Status: parsed.Status, Threshold: price}
	if parsed.NewThreshold.Valid {
		ack.Threshold = parsed.NewThreshold.Decimal
	}
	if ack.Status == "" {
		ack.Status = "success"
	}
	return ack, nil
}

// MarketChart fetches prices, volumes and market caps for the last days.
func (c *Client) MarketChart(ctx context.Context, coinID, days string) (MarketChart, error) {
	start := time.Now()
	q := url.Values{"vs_currency": {"usd"}, "days": {days}}
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.marketURL, url.PathEscape(coinID), q.Encode())

	body, err := c.getCached(ctx, endpoint)
	if err != nil {
		metrics.ObserveBackend("market_chart", start, err)
		return MarketChart{}, err
	}

	var raw struct {
		Prices       [][]decimal.Decimal `json:"prices"`
		TotalVolumes [][]decimal.Decimal `json:"total_volumes"`
		MarketCaps   [][]decimal.Decimal `json:"market_caps"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		err = newError(CodeMalformedResponse, fmt.Sprintf("market chart [%s]: invalid JSON", coinID), err)
		metrics.ObserveBackend("market_chart", start, err)
		return MarketChart{}, err
	}
	if raw.Prices == nil {
		err = newError(CodeMalformedResponse, fmt.Sprintf("market chart [%s]: response has no prices", coinID), nil)
		metrics.ObserveBackend("market_chart", start, err)
		return MarketChart{}, err
	}

	var chart MarketChart
	for _, part := range []struct {
		name string
		in   [][]decimal.Decimal
		out  *[]market.PricePoint
	}{
		{"prices", raw.Prices, &chart.Prices},
		{"total_volumes", raw.TotalVolumes, &chart.Volumes},
		{"market_caps", raw.MarketCaps, &chart.MarketCaps},
	} {
		points, err := toPoints(part.in)
		if err != nil {
			err = newError(CodeMalformedResponse, fmt.Sprintf("market chart [%s]: %s", coinID, part.name), err)
			metrics.ObserveBackend("market_chart", start, err)
			return MarketChart{}, err
		}
		*part.out = points
	}

	metrics.ObserveBackend("market_chart", start, nil)
	return chart, nil
}

// OHLC fetches candles for the last days.
func (c *Client) OHLC(ctx context.Context, coinID, days string) ([]market.Candle, error) {
	start := time.Now()
	q := url.Values{"vs_currency": {"usd"}, "days": {days}}
	endpoint := fmt.Sprintf("%s/coins/%s/ohlc?%s", c.marketURL, url.PathEscape(coinID), q.Encode())

	body, err := c.getCached(ctx, endpoint)
	if err != nil {
		metrics.ObserveBackend("ohlc", start, err)
		return nil, err
	}

	var rows [][]decimal.Decimal
	if err := json.Unmarshal(body, &rows); err != nil {
		err = newError(CodeMalformedResponse, fmt.Sprintf("ohlc [%s]: invalid JSON", coinID), err)
		metrics.ObserveBackend("ohlc", start, err)
		return nil, err
	}

	candles := make([]market.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			err := newError(CodeMalformedResponse, fmt.Sprintf("ohlc [%s]: row %d has %d fields, want 5", coinID, i, len(row)), nil)
			metrics.ObserveBackend("ohlc", start, err)
			return nil, err
		}
		candles = append(candles, market.Candle{
			Time:  time.UnixMilli(row[0].IntPart()).UTC(),
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	metrics.ObserveBackend("ohlc", start, nil)
	return candles, nil
}

func toPoints(rows [][]decimal.Decimal) ([]market.PricePoint, error) {
	points := make([]market.PricePoint, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d has %d fields, want 2", i, len(row))
		}
		points = append(points, market.PricePoint{
			Timestamp: time.UnixMilli(row[0].IntPart()).UTC(),
			Value:     row[1],
		})
	}
	return points, nil
}

func (c *Client) getCached(ctx context.Context, endpoint string) ([]byte, error) {
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, endpoint)
		if err != nil {
			slog.Debug("history cache read failed", "url", endpoint, "error", err)
		} else if ok {
			metrics.HistoryCacheHits.Inc()
			return body, nil
		}
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, endpoint, body); err != nil {
			slog.Debug("history cache write failed", "url", endpoint, "error", err)
		}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newError(CodeNetworkFailure, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(CodeNetworkFailure, fmt.Sprintf("HTTP request failed [%s]", req.URL.Path), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("response body close failed", "url", endpoint, "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(CodeNetworkFailure, fmt.Sprintf("body read error [%s]", req.URL.Path), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, rejection(req.URL.Path, resp, body)
	}
	return body, nil
}

// rejection turns a non-2xx response into SERVER_REJECTION, preferring the
// server's own {"error": "..."} detail.
func rejection(what string, resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &CodedError{Code: CodeServerRejection, Message: "rate limit exceeded, please try again later", Status: resp.StatusCode}
	}

	var detail struct {
		Error string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &detail) == nil && detail.Error != "" {
		msg = detail.Error
	} else {
		msg = strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
	}
	if msg == "" {
		msg = resp.Status
	}
	return &CodedError{Code: CodeServerRejection, Message: fmt.Sprintf("%s: %s", what, msg), Status: resp.StatusCode}
}

// parsePrices accepts both the flat {<coin>:{usd}} body and the wrapped
// {prices:{...}} body, each with optional alert fields.
func parsePrices(body []byte) (PriceSnapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return PriceSnapshot{}, newError(CodeMalformedResponse, "prices: invalid JSON", err)
	}

	snap := PriceSnapshot{Quotes: map[string]market.CoinQuote{}}

	if raw, ok := top["alert"]; ok {
		if err := json.Unmarshal(raw, &snap.Alert); err != nil {
			return PriceSnapshot{}, newError(CodeMalformedResponse, "prices: alert is not a boolean", err)
		}
	}
	if raw, ok := top["threshold_value"]; ok {
		if err := json.Unmarshal(raw, &snap.Threshold); err != nil {
			return PriceSnapshot{}, newError(CodeMalformedResponse, "prices: threshold_value is not a number", err)
		}
	}

	quotes := top
	if raw, ok := top["prices"]; ok {
		quotes = nil
		if err := json.Unmarshal(raw, &quotes); err != nil {
			return PriceSnapshot{}, newError(CodeMalformedResponse, "prices: prices is not an object", err)
		}
	}

	for coinID, raw := range quotes {
		switch coinID {
		case "alert", "threshold_value", "error", "prices":
			continue
		}
		var entry struct {
			USD decimal.NullDecimal `json:"usd"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil || !entry.USD.Valid {
			continue
		}
		snap.Quotes[coinID] = market.CoinQuote{CoinID: coinID, USD: entry.USD.Decimal}
	}
	return snap, nil
}
