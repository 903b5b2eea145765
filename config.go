package fairtrade

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultGasCap is the fee safety cap in wei for ledger writes.
	DefaultGasCap = uint64(500_000)
	// DefaultConfirmTimeout bounds the wait for a transaction receipt.
	DefaultConfirmTimeout = 60 * time.Second
	// DefaultReceiptInterval is how often the receipt poll runs.
	DefaultReceiptInterval = 2 * time.Second
	// DefaultPollInterval is the reveal-wait poll cadence.
	DefaultPollInterval = time.Minute
	// DefaultMaxWait is the reveal-wait horizon.
	DefaultMaxWait = 24 * time.Hour
	// DefaultRetryBudget is the number of backoff retries per failed poll.
	DefaultRetryBudget = 3
)

// Config configures a Market instance. The Paths and MinimumFreeSpace fields
// feed the local secret store; the rest tune the ledger-facing components.
type Config struct {
	// Paths contains secret store directories. Currently only Paths[0] is used.
	Paths []string `yaml:"paths"`
	// MinimumFreeSpace is the free-disk threshold in GB for the secret store.
	MinimumFreeSpace int `yaml:"minimum_free_space"`
	// Logger is an optional logger. If nil, a default logrus logger is used.
	Logger *logrus.Logger `yaml:"-"`

	// GasCap is the fee safety cap for ledger writes. 0 selects DefaultGasCap.
	GasCap uint64 `yaml:"gas_cap"`
	// ConfirmTimeout bounds receipt waiting. 0 selects DefaultConfirmTimeout.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	// ReceiptInterval is the receipt poll cadence. 0 selects DefaultReceiptInterval.
	ReceiptInterval time.Duration `yaml:"receipt_interval"`

	// PollInterval is the reveal-wait poll cadence. 0 selects DefaultPollInterval.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxWait is the reveal-wait horizon. 0 selects DefaultMaxWait.
	MaxWait time.Duration `yaml:"max_wait"`
	// RetryBudget is the bounded retry count for transient poll errors.
	// 0 selects DefaultRetryBudget.
	RetryBudget int `yaml:"retry_budget"`
	// MaxMismatches stops the reveal wait after this many unambiguous
	// commitment mismatches. 0 keeps the classic behavior of failing on the
	// first unambiguous mismatch only.
	MaxMismatches int `yaml:"max_mismatches"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

func (c *Config) checkConfig() error {
	if c.MinimumFreeSpace < 0 {
		return fmt.Errorf("minimum free space must not be negative")
	}
	if c.RetryBudget < 0 {
		return fmt.Errorf("retry budget must not be negative")
	}
	if c.MaxMismatches < 0 {
		return fmt.Errorf("max mismatches must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	if c.GasCap == 0 {
		c.GasCap = DefaultGasCap
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.ReceiptInterval == 0 {
		c.ReceiptInterval = DefaultReceiptInterval
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxWait == 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.RetryBudget == 0 {
		c.RetryBudget = DefaultRetryBudget
	}
}
