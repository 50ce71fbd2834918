package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cloud_bot/internal/helper"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	defaultConfigFile = "configs/values_local.yaml"
	maxLeverage       = 125
)

// ShutdownTimeout: сколько fx ждёт OnStop. Начатый ордер и запись журнала должны успеть.
const ShutdownTimeout = 30 * time.Second

// ErrInvalidConfiguration: движок с такой конфигурацией не стартует.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config ...
type Config struct {
	App struct {
		Name          string `mapstructure:"name" yaml:"name"`
		LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
		LogFile       string `mapstructure:"log_file" yaml:"log_file"`
		LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
		LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
	} `mapstructure:"app" yaml:"app"`

	Exchange struct {
		APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
		APISecret         string        `mapstructure:"api_secret" yaml:"api_secret"`
		Testnet           bool          `mapstructure:"testnet" yaml:"testnet"`
		RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
		Burst             int           `mapstructure:"burst" yaml:"burst"`
		CallTimeout       time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
		OrderTimeout      time.Duration `mapstructure:"order_timeout" yaml:"order_timeout"`
		PriceStream       bool          `mapstructure:"price_stream" yaml:"price_stream"`
		PriceMaxAge       time.Duration `mapstructure:"price_max_age" yaml:"price_max_age"`
	} `mapstructure:"exchange" yaml:"exchange"`

	Trading struct {
		Symbols           []string      `mapstructure:"symbols" yaml:"symbols"`
		PositionSizeUSDT  float64       `mapstructure:"position_size_usdt" yaml:"position_size_usdt"`
		Leverage          int           `mapstructure:"leverage" yaml:"leverage"`
		Isolated          bool          `mapstructure:"isolated" yaml:"isolated"`
		Timeframe         string        `mapstructure:"timeframe" yaml:"timeframe"`
		CandlesLimit      int           `mapstructure:"candles_limit" yaml:"candles_limit"`
		MinCandles        int           `mapstructure:"min_candles" yaml:"min_candles"`
		CycleInterval     time.Duration `mapstructure:"cycle_interval" yaml:"cycle_interval"`
		CycleOffset       time.Duration `mapstructure:"cycle_offset" yaml:"cycle_offset"`
		Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
		ForceCloseTimeout time.Duration `mapstructure:"force_close_timeout" yaml:"force_close_timeout"`
		ReversalSettle    time.Duration `mapstructure:"reversal_settle" yaml:"reversal_settle"`
		MaxBackoff        time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	} `mapstructure:"trading" yaml:"trading"`

	SuperTrend struct {
		Period1     int     `mapstructure:"period1" yaml:"period1"`
		Multiplier1 float64 `mapstructure:"multiplier1" yaml:"multiplier1"`
		Period2     int     `mapstructure:"period2" yaml:"period2"`
		Multiplier2 float64 `mapstructure:"multiplier2" yaml:"multiplier2"`
	} `mapstructure:"supertrend" yaml:"supertrend"`

	HTTP struct {
		Addr string `mapstructure:"addr" yaml:"addr"`
	} `mapstructure:"http" yaml:"http"`

	Telegram struct {
		Token  string `mapstructure:"token" yaml:"token"`
		ChatID int64  `mapstructure:"chat_id" yaml:"chat_id"`
	} `mapstructure:"telegram" yaml:"telegram"`

	Postgres struct {
		DSN string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"postgres" yaml:"postgres"`

	Tracing struct {
		Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
		Host       string  `mapstructure:"host" yaml:"host"`
		Port       int     `mapstructure:"port" yaml:"port"`
		SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	} `mapstructure:"tracing" yaml:"tracing"`
}

// Дефолты те же, что были у бота на Bybit.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cloud_bot")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")
	v.SetDefault("app.log_max_size_mb", 50)
	v.SetDefault("app.log_max_backups", 5)

	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.api_secret", "")
	v.SetDefault("exchange.testnet", true)
	v.SetDefault("exchange.requests_per_second", 10)
	v.SetDefault("exchange.burst", 5)
	v.SetDefault("exchange.call_timeout", "10s")
	v.SetDefault("exchange.order_timeout", "15s")
	v.SetDefault("exchange.price_stream", true)
	v.SetDefault("exchange.price_max_age", "30s")

	v.SetDefault("trading.symbols", []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"})
	v.SetDefault("trading.position_size_usdt", 100.0)
	v.SetDefault("trading.leverage", 20)
	v.SetDefault("trading.isolated", true)
	v.SetDefault("trading.timeframe", "15m")
	v.SetDefault("trading.candles_limit", 400)
	v.SetDefault("trading.min_candles", 50)
	v.SetDefault("trading.cycle_interval", "60s")
	v.SetDefault("trading.cycle_offset", "2s")
	v.SetDefault("trading.enabled", false)
	v.SetDefault("trading.force_close_timeout", "3m")
	v.SetDefault("trading.reversal_settle", "500ms")
	v.SetDefault("trading.max_backoff", "10m")

	v.SetDefault("supertrend.period1", 10)
	v.SetDefault("supertrend.multiplier1", 3.0)
	v.SetDefault("supertrend.period2", 10)
	v.SetDefault("supertrend.multiplier2", 6.0)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("tracing.sample_rate", 1.0)
}

// NewConfig: дефолты → yaml-файл → .env → переменные окружения (TRADING_LEVERAGE и т.п.).
func NewConfig() (*Config, error) {
	// .env опционален
	_ = godotenv.Load()

	path := os.Getenv(configFilePathENV)
	if path == "" {
		path = defaultConfigFile
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			// файла может не быть: всё берём из дефолтов и env
			if !isNotFound(err) {
				return nil, errors.Wrapf(ErrInvalidConfiguration, "read %s: %v", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "decode: %v", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return true
	}
	var pe *os.PathError
	return errors.As(err, &pe)
}

func (c *Config) normalize() {
	out := make([]string, 0, len(c.Trading.Symbols))
	for _, s := range c.Trading.Symbols {
		for _, part := range strings.Split(s, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	c.Trading.Symbols = out
	c.Trading.Timeframe = helper.NormTF(c.Trading.Timeframe)
}

// Validate проверяет всё, что нужно движку до старта.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	t := c.Trading
	if len(t.Symbols) == 0 {
		add("trading.symbols is empty")
	}
	seen := make(map[string]struct{}, len(t.Symbols))
	for _, s := range t.Symbols {
		if _, dup := seen[s]; dup {
			add("trading.symbols has duplicate %s", s)
		}
		seen[s] = struct{}{}
	}
	if t.PositionSizeUSDT <= 0 {
		add("trading.position_size_usdt must be > 0")
	}
	if t.Leverage <= 0 || t.Leverage > maxLeverage {
		add("trading.leverage must be in 1..%d", maxLeverage)
	}
	if _, ok := helper.TimeframeDuration(t.Timeframe); !ok {
		add("trading.timeframe %q is not supported", t.Timeframe)
	}
	if t.CycleInterval <= 0 {
		add("trading.cycle_interval must be > 0")
	}
	if t.CycleOffset < 0 || t.CycleOffset >= t.CycleInterval {
		add("trading.cycle_offset must be in [0, cycle_interval)")
	}

	ex := c.Exchange
	if ex.CallTimeout <= 0 || ex.OrderTimeout <= 0 {
		add("exchange.call_timeout and exchange.order_timeout must be > 0")
	} else if ex.OrderTimeout+ex.CallTimeout >= ShutdownTimeout {
		add("exchange.order_timeout + call_timeout must be below %s", ShutdownTimeout)
	}

	st := c.SuperTrend
	if st.Period1 <= 0 || st.Period2 <= 0 {
		add("supertrend periods must be > 0")
	}
	if st.Multiplier1 <= 0 || st.Multiplier2 <= 0 {
		add("supertrend multipliers must be > 0")
	}
	if t.MinCandles < 2*max(st.Period1, st.Period2) {
		add("trading.min_candles %d is below 2x the longest period", t.MinCandles)
	}
	if t.CandlesLimit < t.MinCandles+1 {
		// +1: последняя свеча обычно ещё формируется
		add("trading.candles_limit %d must exceed min_candles %d", t.CandlesLimit, t.MinCandles)
	}
	if t.CandlesLimit > 1500 {
		add("trading.candles_limit %d exceeds exchange maximum 1500", t.CandlesLimit)
	}

	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		add("telegram.chat_id is required with telegram.token")
	}

	if len(problems) > 0 {
		return errors.Wrap(ErrInvalidConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// TimeframeDuration: длительность свечи, после Validate всегда ok.
func (c *Config) TimeframeDuration() time.Duration {
	d, _ := helper.TimeframeDuration(c.Trading.Timeframe)
	return d
}

// Redacted: yaml без секретов, для стартового лога.
func (c *Config) Redacted() string {
	cp := *c
	cp.Exchange.APIKey = mask(cp.Exchange.APIKey)
	cp.Exchange.APISecret = mask(cp.Exchange.APISecret)
	cp.Telegram.Token = mask(cp.Telegram.Token)
	cp.Postgres.DSN = mask(cp.Postgres.DSN)

	out, err := yaml.Marshal(&cp)
	if err != nil {
		return fmt.Sprintf("<config marshal error: %v>", err)
	}
	return string(out)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
