package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PolicyConfig holds the deployment-level pricing defaults applied when
// an org has no persisted tax policies of its own. The card/cash split is
// a business setting, so it lives in a reloadable file, not in code.
type PolicyConfig struct {
	Tax TaxDefaults `mapstructure:"tax"`
}

type TaxDefaults struct {
	Mode  string             `mapstructure:"mode"`  // exclusive | inclusive
	Rates map[string]float64 `mapstructure:"rates"` // payment method -> fraction
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Tax: TaxDefaults{
			Mode: "exclusive",
			Rates: map[string]float64{
				"cash":          0.16,
				"card":          0.05,
				"bank_transfer": 0.16,
				"gift_card":     0.16,
				"mobile_wallet": 0.16,
			},
		},
	}
}

// PolicyHolder keeps the current policy config behind an atomic value and
// hot-reloads it when the file changes on disk.
type PolicyHolder struct {
	current atomic.Value // holds PolicyConfig
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tally/config") // Volume-mounted config
	v.AddConfigPath("/etc/tally")            // System config
	v.AddConfigPath(".")                     // Current directory (dev mode)

	v.SetEnvPrefix("TALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PolicyHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPolicyConfig())
		return holder, nil
	}

	var cfg PolicyConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validatePolicyConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(normalizePolicyConfig(cfg))

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PolicyConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Printf("[policy-config] reload failed: %v", err)
			return
		}
		if err := validatePolicyConfig(updated); err != nil {
			log.Printf("[policy-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(normalizePolicyConfig(updated))
	})

	return holder, nil
}

// Current returns the active policy config snapshot.
func (h *PolicyHolder) Current() PolicyConfig {
	if cfg, ok := h.current.Load().(PolicyConfig); ok {
		return cfg
	}
	return DefaultPolicyConfig()
}

var errInvalidPolicyMode = errors.New("invalid_tax_mode")

type invalidRateError struct {
	method string
	rate   float64
}

func (e *invalidRateError) Error() string {
	return fmt.Sprintf("invalid_tax_rate: %s=%v", e.method, e.rate)
}

func validatePolicyConfig(cfg PolicyConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Tax.Mode)) {
	case "", "exclusive", "inclusive":
	default:
		return errInvalidPolicyMode
	}
	for method, rate := range cfg.Tax.Rates {
		if rate < 0 || rate > 1 {
			return &invalidRateError{method: method, rate: rate}
		}
	}
	return nil
}

func normalizePolicyConfig(cfg PolicyConfig) PolicyConfig {
	if strings.TrimSpace(cfg.Tax.Mode) == "" {
		cfg.Tax.Mode = "exclusive"
	}
	cfg.Tax.Mode = strings.ToLower(strings.TrimSpace(cfg.Tax.Mode))
	if cfg.Tax.Rates == nil {
		cfg.Tax.Rates = DefaultPolicyConfig().Tax.Rates
	}
	return cfg
}
