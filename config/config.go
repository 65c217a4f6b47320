package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/straddlebot/internal/domain"
	"github.com/alejandrodnm/straddlebot/internal/ports"
)

const dateLayout = "2006-01-02"

// Config es la configuración completa del backtester.
type Config struct {
	Profile  string                `yaml:"profile"`
	Strategy domain.StrategyParams `yaml:"strategy"`
	Data     DataConfig            `yaml:"data"`
	Optimize OptimizeConfig        `yaml:"optimize"`
	API      APIConfig             `yaml:"api"`
	Storage  StorageConfig         `yaml:"storage"`
	Log      LogConfig             `yaml:"log"`
	Export   ExportConfig          `yaml:"export"`
}

// DataConfig controla de dónde salen las velas y qué tramo se simula.
type DataConfig struct {
	Source         string  `yaml:"source"`   // csv | binance
	CSVPath        string  `yaml:"csv_path"` // requerido con source=csv
	Symbol         string  `yaml:"symbol"`
	Interval       string  `yaml:"interval"`
	Start          string  `yaml:"start"` // YYYY-MM-DD, inclusivo
	End            string  `yaml:"end"`   // YYYY-MM-DD, inclusivo
	LookbackDays   int     `yaml:"lookback_days"`
	PeriodsPerYear float64 `yaml:"periods_per_year"` // 0 = según intervalo
	BinanceBase    string  `yaml:"binance_base"`
}

// OptimizeConfig describe el grid search.
type OptimizeConfig struct {
	Grid      map[string][]float64 `yaml:"grid"`
	Objective string               `yaml:"objective"` // sharpe | return
	Workers   int                  `yaml:"workers"`
	Top       int                  `yaml:"top"`
}

// APIConfig controla el servidor HTTP.
type APIConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig controla dónde se persisten los runs.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta SQLite, ":memory:", postgres://... o clickhouse://...
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// ExportConfig controla la exportación CSV.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// El perfil se aplica antes de decodificar la sección strategy, así que las
// claves explícitas del YAML ganan sobre el perfil.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse construye la configuración a partir de YAML ya leído.
func Parse(data []byte) (*Config, error) {
	var head struct {
		Profile string `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}
	if v := os.Getenv("STRADDLE_PROFILE"); v != "" {
		head.Profile = v
	}

	base, err := ApplyProfile(domain.DefaultParams(), head.Profile)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := Config{Strategy: base}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}
	cfg.Profile = strings.ToUpper(head.Profile)

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default devuelve la configuración sin archivo: perfil BALANCED y defaults.
func Default() *Config {
	cfg := Config{Profile: ProfileBalanced, Strategy: domain.DefaultParams()}
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg
}

// StrategyParams devuelve una copia de los parámetros de la estrategia.
func (c *Config) StrategyParams() domain.StrategyParams {
	return c.Strategy
}

// Lookback es el margen de historia que se pide antes de Data.Start.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Data.LookbackDays) * 24 * time.Hour
}

// BarRequest traduce la sección data a una petición para el proveedor.
// End cubre el día completo.
func (c *Config) BarRequest() (ports.BarRequest, error) {
	req := ports.BarRequest{Symbol: c.Data.Symbol, Interval: c.Data.Interval}
	if c.Data.Start != "" {
		from, err := time.Parse(dateLayout, c.Data.Start)
		if err != nil {
			return req, fmt.Errorf("config.BarRequest: start: %w", err)
		}
		req.From = from
	}
	if c.Data.End != "" {
		end, err := time.Parse(dateLayout, c.Data.End)
		if err != nil {
			return req, fmt.Errorf("config.BarRequest: end: %w", err)
		}
		req.To = end.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	if !req.From.IsZero() && !req.To.IsZero() && !req.From.Before(req.To) {
		return req, fmt.Errorf("config.BarRequest: start %s is after end %s", c.Data.Start, c.Data.End)
	}
	return req, nil
}

// Validate comprueba la estrategia y la sección data.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	switch c.Data.Source {
	case "csv":
		if c.Data.CSVPath == "" {
			return fmt.Errorf("config.Validate: data.csv_path is required with source csv")
		}
	case "binance":
	default:
		return fmt.Errorf("config.Validate: unknown data.source %q (want csv or binance)", c.Data.Source)
	}
	if _, err := c.BarRequest(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STRADDLE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("STRADDLE_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("STRADDLE_DATA_CSV"); v != "" {
		cfg.Data.CSVPath = v
		cfg.Data.Source = "csv"
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileBalanced
	}
	if cfg.Data.Source == "" {
		if cfg.Data.CSVPath != "" {
			cfg.Data.Source = "csv"
		} else {
			cfg.Data.Source = "binance"
		}
	}
	if cfg.Data.Symbol == "" {
		cfg.Data.Symbol = "BTCUSDT"
	}
	if cfg.Data.Interval == "" {
		cfg.Data.Interval = "1h"
	}
	if cfg.Data.LookbackDays <= 0 {
		cfg.Data.LookbackDays = 14
	}
	if cfg.Data.BinanceBase == "" {
		cfg.Data.BinanceBase = "https://api.binance.com"
	}
	if cfg.Optimize.Objective == "" {
		cfg.Optimize.Objective = "sharpe"
	}
	if cfg.Optimize.Top <= 0 {
		cfg.Optimize.Top = 10
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "straddle.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "output"
	}
}
