// Package csvfeed reads OHLCV series from CSV files and writes run artefacts as CSV.
package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

// Loader implementa ports.BarProvider sobre un fichero CSV.
type Loader struct {
	path string
}

// NewLoader crea un Loader para path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

var _ ports.BarProvider = (*Loader)(nil)

// FetchBars lee el fichero completo. El filtrado por rango lo hace el pipeline,
// que necesita las barras anteriores para calentar indicadores.
func (l *Loader) FetchBars(ctx context.Context, _ ports.BarRequest) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("csvfeed.FetchBars: open: %w", err)
	}
	defer f.Close()

	bars, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("csvfeed.FetchBars: %s: %w", l.path, err)
	}
	return bars, nil
}

// columnas aceptadas para cada campo
var aliases = map[string][]string{
	"timestamp": {"timestamp", "time", "date", "datetime", "open_time"},
	"open":      {"open", "o"},
	"high":      {"high", "h"},
	"low":       {"low", "l"},
	"close":     {"close", "c"},
	"volume":    {"volume", "vol", "v"},
}

// ReadBars parsea un CSV con cabecera timestamp,open,high,low,close,volume
// (en cualquier orden). Devuelve las barras ordenadas por tiempo.
func ReadBars(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrNoBars
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		b, err := parseRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, domain.ErrNoBars
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func mapColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	cols := make(map[string]int, len(aliases))
	for field, names := range aliases {
		for _, name := range names {
			if i, ok := index[name]; ok {
				cols[field] = i
				break
			}
		}
		if _, ok := cols[field]; !ok && field != "volume" {
			return nil, fmt.Errorf("missing column %q", field)
		}
	}
	return cols, nil
}

func parseRecord(rec []string, cols map[string]int) (domain.Bar, error) {
	var b domain.Bar
	ts, err := ParseTimestamp(rec[cols["timestamp"]])
	if err != nil {
		return b, err
	}
	b.Timestamp = ts

	fields := []struct {
		name string
		dst  *float64
	}{
		{"open", &b.Open},
		{"high", &b.High},
		{"low", &b.Low},
		{"close", &b.Close},
		{"volume", &b.Volume},
	}
	for _, f := range fields {
		i, ok := cols[f.name]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return b, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return b, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp acepta RFC3339, fechas sin zona (UTC) y epoch en segundos o milisegundos.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
