package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

// klinesLimit es el máximo de velas por página que acepta la API.
const klinesLimit = 1000

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration devuelve la duración de un intervalo de Binance.
func IntervalDuration(interval string) (time.Duration, bool) {
	d, ok := intervals[interval]
	return d, ok
}

var _ ports.BarProvider = (*Client)(nil)

// FetchBars descarga [From, To) paginando de 1000 en 1000.
// Sin From se piden las últimas 1000 velas hasta To (o ahora).
func (c *Client) FetchBars(ctx context.Context, req ports.BarRequest) ([]domain.Bar, error) {
	step, ok := IntervalDuration(req.Interval)
	if !ok {
		return nil, fmt.Errorf("binance.FetchBars: unsupported interval %q", req.Interval)
	}
	if req.Symbol == "" {
		return nil, fmt.Errorf("binance.FetchBars: empty symbol")
	}

	to := req.To
	if to.IsZero() {
		to = c.now()
	}
	from := req.From
	if from.IsZero() {
		from = to.Add(-klinesLimit * step)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("binance.FetchBars: empty range %s → %s", from, to)
	}

	var bars []domain.Bar
	for cursor := from; cursor.Before(to); {
		page, err := c.fetchPage(ctx, req.Symbol, req.Interval, cursor, to)
		if err != nil {
			return nil, fmt.Errorf("binance.FetchBars: %s from %s: %w", req.Symbol, cursor.Format(time.RFC3339), err)
		}
		bars = append(bars, page...)

		if len(page) < klinesLimit {
			break
		}
		cursor = page[len(page)-1].Timestamp.Add(step)
	}

	slog.Debug("binance: klines fetched", "symbol", req.Symbol, "interval", req.Interval, "bars", len(bars))
	return bars, nil
}

func (c *Client) fetchPage(ctx context.Context, symbol, interval string, from, to time.Time) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("endTime", strconv.FormatInt(to.UnixMilli()-1, 10))
	q.Set("limit", strconv.Itoa(klinesLimit))

	var raw []kline
	if err := c.get(ctx, c.base+"/api/v3/klines?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, len(raw))
	for i, k := range raw {
		bars[i] = k.bar()
	}
	return bars, nil
}

// kline es una fila [openTime, open, high, low, close, volume, closeTime, ...].
// Los precios llegan como strings.
type kline struct {
	openTime                      int64
	open, high, low, close, volume float64
}

func (k *kline) UnmarshalJSON(data []byte) error {
	var row []json.RawMessage
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	if len(row) < 6 {
		return fmt.Errorf("kline: expected at least 6 fields, got %d", len(row))
	}
	if err := json.Unmarshal(row[0], &k.openTime); err != nil {
		return fmt.Errorf("kline open time: %w", err)
	}
	dst := []*float64{&k.open, &k.high, &k.low, &k.close, &k.volume}
	for i, p := range dst {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return fmt.Errorf("kline field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("kline field %d: %w", i+1, err)
		}
		*p = v
	}
	return nil
}

func (k kline) bar() domain.Bar {
	return domain.Bar{
		Timestamp: time.UnixMilli(k.openTime).UTC(),
		Open:      k.open,
		High:      k.high,
		Low:       k.low,
		Close:     k.close,
		Volume:    k.volume,
	}
}
