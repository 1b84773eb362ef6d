package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // schedule.timezone must resolve in minimal containers

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"CrashSentinel/internal/collector"
	"CrashSentinel/internal/debtceiling"
	"CrashSentinel/internal/portfolio"
	"CrashSentinel/internal/strategy"
)

// ErrConfiguration wraps every load and validation failure.
var ErrConfiguration = errors.New("configuration error")

const dateLayout = "2006-01-02"

// Config holds all application configuration.
type Config struct {
	Weights []strategy.Weight `yaml:"weights" validate:"dive"`

	Strategy struct {
		SellThreshold float64       `yaml:"sell_threshold" validate:"gt=0,lte=1"`
		Cooldown      time.Duration `yaml:"cooldown" validate:"gt=0"`
		TopReasons    int           `yaml:"top_reasons" validate:"gte=1"`
	} `yaml:"strategy"`

	Recovery struct {
		FearIndicator   string  `yaml:"fear_indicator" validate:"required"`
		CreditIndicator string  `yaml:"credit_indicator" validate:"required"`
		Threshold       float64 `yaml:"threshold" validate:"gt=0,lte=1"`
		Window          int     `yaml:"window" validate:"gte=1"`
		CreditTolerance float64 `yaml:"credit_tolerance" validate:"gte=0,lte=1"`
	} `yaml:"recovery"`

	DebtCeiling struct {
		XDate              string  `yaml:"x_date" validate:"required,datetime=2006-01-02"`
		NearDays           int     `yaml:"near_days" validate:"gt=0"`
		EmergencyDays      int     `yaml:"emergency_days" validate:"gte=0,ltefield=NearDays"`
		MonitoringBoost    float64 `yaml:"monitoring_boost" validate:"gte=0,lte=1"`
		EmergencyBoost     float64 `yaml:"emergency_boost" validate:"gte=0,lte=1"`
		BudgetRiskTrigger  float64 `yaml:"budget_risk_trigger" validate:"gt=0,lte=1"`
		StressWeight       float64 `yaml:"stress_weight" validate:"gte=0"`
		ProximityWeight    float64 `yaml:"proximity_weight" validate:"gte=0"`
		FearWeight         float64 `yaml:"fear_weight" validate:"gte=0"`
		DecayHalfLifeDays  float64 `yaml:"decay_half_life_days" validate:"gt=0"`
		TBillSpreadScaleBP float64 `yaml:"tbill_spread_scale_bp" validate:"gt=0"`
		TreasuryVolScale   float64 `yaml:"treasury_vol_scale" validate:"gt=0"`
		FearFloor          float64 `yaml:"fear_floor" validate:"gte=0"`
		FearCeiling        float64 `yaml:"fear_ceiling" validate:"gtfield=FearFloor"`
	} `yaml:"debt_ceiling"`

	Schedule struct {
		DailyCron     string `yaml:"daily_cron" validate:"required"`
		IntradayCron  string `yaml:"intraday_cron"`
		WeeklyCron    string `yaml:"weekly_cron"`
		PortfolioCron string `yaml:"portfolio_cron"`
		Timezone      string `yaml:"timezone"`
	} `yaml:"schedule"`

	Portfolio struct {
		Holdings     []portfolio.Holding `yaml:"holdings" validate:"dive"`
		HoldingsFile string              `yaml:"holdings_file"`
		StateFile    string              `yaml:"state_file"`
		Defensive    []string            `yaml:"defensive"`
		Benchmark    string              `yaml:"benchmark"`
	} `yaml:"portfolio"`

	Telegram struct {
		BotToken string `yaml:"bot_token" validate:"required_with=ChatID"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
		Polling  bool   `yaml:"polling"`
	} `yaml:"telegram"`

	DataSource struct {
		Provider          string            `yaml:"provider" validate:"oneof=yahoo rest mock"`
		BaseURL           string            `yaml:"base_url" validate:"required_if=Provider rest"`
		APIKey            string            `yaml:"api_key"`
		RequestsPerSecond float64           `yaml:"requests_per_second" validate:"gt=0"`
		Symbols           collector.Symbols `yaml:"symbols"`
	} `yaml:"data_source"`

	Storage struct {
		Backend   string `yaml:"backend" validate:"oneof=file redis"`
		StateFile string `yaml:"state_file" validate:"required_if=Backend file"`
		RedisAddr string `yaml:"redis_addr" validate:"required_if=Backend redis"`
		RedisKey  string `yaml:"redis_key"`
	} `yaml:"storage"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	HTTP struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`

	Logging struct {
		Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" validate:"oneof=console json"`
	} `yaml:"logging"`

	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error; Validate decides whether the result is usable.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.seedNumericDefaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: read config: %v", ErrConfiguration, err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config: %v", ErrConfiguration, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DEBT_CEILING_X_DATE"); v != "" {
		c.DebtCeiling.XDate = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		c.Storage.StateFile = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
		c.Storage.Backend = "redis"
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// seedNumericDefaults fills tunables before the YAML is decoded, so a value the file
// sets explicitly (including 0) wins over the default.
func (c *Config) seedNumericDefaults() {
	es := strategy.DefaultConfig()
	c.Strategy.SellThreshold = es.SellThreshold
	c.Strategy.Cooldown = es.Cooldown
	c.Strategy.TopReasons = es.TopReasons

	rc := es.Recovery
	c.Recovery.Threshold = rc.Threshold
	c.Recovery.Window = rc.Window
	c.Recovery.CreditTolerance = rc.CreditTolerance

	dc := debtceiling.DefaultConfig(time.Time{})
	d := &c.DebtCeiling
	d.NearDays = dc.NearDays
	d.EmergencyDays = dc.EmergencyDays
	d.MonitoringBoost = dc.MonitoringBoost
	d.EmergencyBoost = dc.EmergencyBoost
	d.BudgetRiskTrigger = es.BudgetRiskTrigger
	d.StressWeight, d.ProximityWeight, d.FearWeight = dc.StressWeight, dc.ProximityWeight, dc.FearWeight
	d.DecayHalfLifeDays = dc.DecayHalfLifeDays
	d.TBillSpreadScaleBP = dc.TBillSpreadScaleBP
	d.TreasuryVolScale = dc.TreasuryVolScale
	d.FearFloor, d.FearCeiling = dc.FearFloor, dc.FearCeiling

	c.DataSource.RequestsPerSecond = collector.DefaultResilienceConfig().RequestsPerSecond
}

// applyDefaults fills settings where an empty value is never meaningful.
func (c *Config) applyDefaults() {
	if len(c.Weights) == 0 {
		c.Weights = strategy.DefaultWeights()
	}

	rc := strategy.DefaultRecoveryConfig()
	if c.Recovery.FearIndicator == "" {
		c.Recovery.FearIndicator = rc.FearIndicator
	}
	if c.Recovery.CreditIndicator == "" {
		c.Recovery.CreditIndicator = rc.CreditIndicator
	}

	if c.Schedule.DailyCron == "" {
		c.Schedule.DailyCron = "0 30 16 * * 1-5"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "America/New_York"
	}

	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.Symbols == (collector.Symbols{}) {
		c.DataSource.Symbols = collector.DefaultSymbols()
	}

	if c.Portfolio.StateFile == "" {
		c.Portfolio.StateFile = "data/portfolio_state.json"
	}
	if c.Portfolio.Defensive == nil {
		c.Portfolio.Defensive = portfolio.DefaultDefensive
	}
	if c.Portfolio.Benchmark == "" {
		c.Portfolio.Benchmark = c.DataSource.Symbols.LargeCap
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.StateFile == "" {
		c.Storage.StateFile = "data/position_state.json"
	}
	if c.Storage.RedisKey == "" {
		c.Storage.RedisKey = "crashsentinel:position"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/crash_sentinel.db"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks struct constraints and the weight table. Every failure wraps ErrConfiguration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (%d problems)", ErrConfiguration, fe.Namespace(), fe.Tag(), len(verrs))
		}
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := strategy.ValidateWeights(c.Weights); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("%w: schedule.timezone: %v", ErrConfiguration, err)
	}
	return nil
}

// XDate returns the parsed debt-ceiling deadline.
func (c *Config) XDate() (time.Time, error) {
	t, err := time.Parse(dateLayout, c.DebtCeiling.XDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: debt_ceiling.x_date: %v", ErrConfiguration, err)
	}
	return t, nil
}

// WeightTable returns a copy of the configured weight table in declaration order.
func (c *Config) WeightTable() []strategy.Weight {
	return append([]strategy.Weight(nil), c.Weights...)
}

// EngineConfig builds the decision engine thresholds.
func (c *Config) EngineConfig() strategy.Config {
	return strategy.Config{
		SellThreshold:     c.Strategy.SellThreshold,
		BudgetRiskTrigger: c.DebtCeiling.BudgetRiskTrigger,
		Cooldown:          c.Strategy.Cooldown,
		TopReasons:        c.Strategy.TopReasons,
		Recovery: strategy.RecoveryConfig{
			FearIndicator:     c.Recovery.FearIndicator,
			CreditIndicator:   c.Recovery.CreditIndicator,
			Threshold:         c.Recovery.Threshold,
			Window:            c.Recovery.Window,
			CreditTolerance:   c.Recovery.CreditTolerance,
			BudgetRiskTrigger: c.DebtCeiling.BudgetRiskTrigger,
		},
	}
}

// DebtCeilingConfig builds the timer configuration.
func (c *Config) DebtCeilingConfig() (debtceiling.Config, error) {
	x, err := c.XDate()
	if err != nil {
		return debtceiling.Config{}, err
	}
	d := c.DebtCeiling
	return debtceiling.Config{
		XDate:              x,
		NearDays:           d.NearDays,
		EmergencyDays:      d.EmergencyDays,
		MonitoringBoost:    d.MonitoringBoost,
		EmergencyBoost:     d.EmergencyBoost,
		StressWeight:       d.StressWeight,
		ProximityWeight:    d.ProximityWeight,
		FearWeight:         d.FearWeight,
		DecayHalfLifeDays:  d.DecayHalfLifeDays,
		TBillSpreadScaleBP: d.TBillSpreadScaleBP,
		TreasuryVolScale:   d.TreasuryVolScale,
		FearFloor:          d.FearFloor,
		FearCeiling:        d.FearCeiling,
	}, nil
}

// PortfolioConfig builds the holdings monitor settings. Holdings from holdings_file follow the
// inline list; an unreadable file is a configuration error.
func (c *Config) PortfolioConfig() (portfolio.Config, error) {
	p := c.Portfolio
	holdings := append([]portfolio.Holding(nil), p.Holdings...)
	if p.HoldingsFile != "" {
		f, err := os.Open(p.HoldingsFile)
		if err != nil {
			return portfolio.Config{}, fmt.Errorf("%w: holdings file: %v", ErrConfiguration, err)
		}
		defer f.Close()
		more, err := portfolio.ParseHoldingsCSV(f)
		if err != nil {
			return portfolio.Config{}, fmt.Errorf("%w: %s: %v", ErrConfiguration, p.HoldingsFile, err)
		}
		holdings = append(holdings, more...)
	}
	return portfolio.Config{
		Holdings:  holdings,
		StateFile: p.StateFile,
		Defensive: p.Defensive,
		Benchmark: p.Benchmark,
	}, nil
}

// ResilienceConfig builds the collector rate-limit and breaker settings.
func (c *Config) ResilienceConfig() collector.ResilienceConfig {
	rc := collector.DefaultResilienceConfig()
	rc.RequestsPerSecond = c.DataSource.RequestsPerSecond
	return rc
}
