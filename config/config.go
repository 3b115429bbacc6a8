package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Scanner     ScannerConfig     `yaml:"scanner"`
	Arbitrage   ArbitrageConfig   `yaml:"arbitrage"`
	CashFutures CashFuturesConfig `yaml:"cash_futures"`
	Risk        RiskConfig        `yaml:"risk"`
	Executor    ExecutorConfig    `yaml:"executor"`
	API         APIConfig         `yaml:"api"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
}

// ScannerConfig controla el ciclo de escaneo.
type ScannerConfig struct {
	IntervalSeconds int      `yaml:"interval_seconds"`
	Symbols         []string `yaml:"symbols"`      // watchlist de subyacentes
	VenueA          string   `yaml:"venue_a"`      // venue cash primario
	VenueB          string   `yaml:"venue_b"`      // venue cash secundario
	FuturesVenue    string   `yaml:"futures_venue"`
	Workers         int      `yaml:"workers"` // 0 = automático según CPUs
}

// ArbitrageConfig son los umbrales del escaneo entre venues.
type ArbitrageConfig struct {
	MinPctDiff         float64       `yaml:"min_pct_diff"`          // % mínimo para marcar profitable
	MinVolume          float64       `yaml:"min_volume"`            // 0 desactiva el filtro
	QuoteMaxAgeSeconds int           `yaml:"quote_max_age_seconds"` // 0 desactiva el filtro
	CostPerSidePct     float64       `yaml:"cost_per_side_pct"`     // brokerage+impuestos por lado, en %
	Scoring            ScoringConfig `yaml:"scoring"`
}

// CashFuturesConfig son los umbrales del escaneo cash-futures.
type CashFuturesConfig struct {
	MinPremiumPct      float64       `yaml:"min_premium_pct"`
	MinDaysToExpiry    int           `yaml:"min_days_to_expiry"`
	MaxDaysToExpiry    int           `yaml:"max_days_to_expiry"` // 0 desactiva el filtro
	HoldingWindowDays  int           `yaml:"holding_window_days"`
	MinVolume          float64       `yaml:"min_volume"`
	QuoteMaxAgeSeconds int           `yaml:"quote_max_age_seconds"`
	Scoring            ScoringConfig `yaml:"scoring"`
}

// ScoringConfig parametriza la curva de liquidez del score. Los campos a
// cero usan los defaults del dominio.
type ScoringConfig struct {
	LiquidityBase    float64 `yaml:"liquidity_base"`
	LiquidityBoost   float64 `yaml:"liquidity_boost"`
	VolumeSaturation float64 `yaml:"volume_saturation"`
	VolumeFloor      float64 `yaml:"volume_floor"`
	PenaltyWeight    float64 `yaml:"penalty_weight"`
}

// RiskConfig controla el gate de margen.
type RiskConfig struct {
	// MarginRates mapea producto (CNC, MIS, NRML) a fracción del valor de
	// la orden que se bloquea como margen.
	MarginRates       map[string]float64 `yaml:"margin_rates"`
	DefaultMarginRate float64            `yaml:"default_margin_rate"` // para productos no mapeados
	// LotSizes permite fijar lot sizes a mano por símbolo, por encima de
	// lo que diga el dump de instrumentos del broker.
	LotSizes map[string]int `yaml:"lot_sizes"`
}

// ExecutorConfig controla la ejecución de órdenes reales.
type ExecutorConfig struct {
	DefaultQuantity   int    `yaml:"default_quantity"`    // acciones por leg de arbitraje
	DefaultLots       int    `yaml:"default_lots"`        // lotes por leg de futuros
	OrderType         string `yaml:"order_type"`          // MARKET | LIMIT
	AckTimeoutSeconds int    `yaml:"ack_timeout_seconds"` // sin ack en este plazo, la leg es FAILED
	StopOnFailure     bool   `yaml:"stop_on_failure"`     // corta el lote tras el primer fallo
}

// APIConfig apunta al broker. Las credenciales van SOLO por entorno, nunca
// en el YAML.
type APIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"-"` // KITE_API_KEY
	AccessToken string `yaml:"-"` // KITE_ACCESS_TOKEN
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN           string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	RetentionDays int    `yaml:"retention_days"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// ScanInterval devuelve el intervalo de escaneo como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalSeconds) * time.Second
}

// AckTimeout devuelve el plazo máximo de ack como time.Duration.
func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.Executor.AckTimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.API.AccessToken = v
	}
	if v := os.Getenv("KITE_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Scanner.IntervalSeconds <= 0 {
		cfg.Scanner.IntervalSeconds = 30
	}
	if len(cfg.Scanner.Symbols) == 0 {
		cfg.Scanner.Symbols = []string{"RELIANCE", "TCS", "INFY", "HDFCBANK", "ICICIBANK"}
	}
	if cfg.Scanner.VenueA == "" {
		cfg.Scanner.VenueA = "NSE"
	}
	if cfg.Scanner.VenueB == "" {
		cfg.Scanner.VenueB = "BSE"
	}
	if cfg.Scanner.FuturesVenue == "" {
		cfg.Scanner.FuturesVenue = "NFO"
	}
	if cfg.Arbitrage.MinPctDiff <= 0 {
		cfg.Arbitrage.MinPctDiff = 0.05
	}
	if cfg.Arbitrage.CostPerSidePct <= 0 {
		cfg.Arbitrage.CostPerSidePct = 0.05
	}
	if cfg.CashFutures.MinPremiumPct <= 0 {
		cfg.CashFutures.MinPremiumPct = 0.1
	}
	if cfg.CashFutures.MinDaysToExpiry <= 0 {
		cfg.CashFutures.MinDaysToExpiry = 1
	}
	if cfg.CashFutures.HoldingWindowDays <= 0 {
		cfg.CashFutures.HoldingWindowDays = 7
	}
	if len(cfg.Risk.MarginRates) == 0 {
		cfg.Risk.MarginRates = map[string]float64{
			"CNC":  1.0,
			"MIS":  0.30,
			"NRML": 1.0,
		}
	}
	if cfg.Risk.DefaultMarginRate <= 0 {
		cfg.Risk.DefaultMarginRate = 0.30
	}
	if cfg.Executor.DefaultQuantity <= 0 {
		cfg.Executor.DefaultQuantity = 1
	}
	if cfg.Executor.DefaultLots <= 0 {
		cfg.Executor.DefaultLots = 1
	}
	if cfg.Executor.OrderType == "" {
		cfg.Executor.OrderType = "MARKET"
	}
	if cfg.Executor.AckTimeoutSeconds <= 0 {
		cfg.Executor.AckTimeoutSeconds = 10
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.kite.trade"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "kitebot.db"
	}
	if cfg.Storage.RetentionDays <= 0 {
		cfg.Storage.RetentionDays = 90
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
