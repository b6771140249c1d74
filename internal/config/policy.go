package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// TallyPolicy is the hot-reloadable counting policy: which symbol is
// counted, how long the default leaderboard is, and whether confirming a
// freeze also resets the target's accumulated totals.
type TallyPolicy struct {
	Symbol              string `mapstructure:"symbol"`
	TopLimit            int    `mapstructure:"topLimit"`
	FreezeZeroesHistory bool   `mapstructure:"freezeZeroesHistory"`
}

func DefaultTallyPolicy() TallyPolicy {
	return TallyPolicy{
		Symbol:              "🐝",
		TopLimit:            10,
		FreezeZeroesHistory: false,
	}
}

type TallyPolicyHolder struct {
	current atomic.Value // holds TallyPolicy
}

// NewTallyPolicyHolderWith wraps a fixed policy. Used by tests and as the
// fallback when no policy file exists.
func NewTallyPolicyHolderWith(policy TallyPolicy) *TallyPolicyHolder {
	holder := &TallyPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

// NewTallyPolicyHolder loads tally.yml and watches it for changes.
func NewTallyPolicyHolder() (*TallyPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("tally")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/hivetally")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HIVETALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultTallyPolicy()
		v.SetDefault("tally.symbol", defaults.Symbol)
		v.SetDefault("tally.topLimit", defaults.TopLimit)
		v.SetDefault("tally.freezeZeroesHistory", defaults.FreezeZeroesHistory)
	}

	var policy TallyPolicy
	if err := v.UnmarshalKey("tally", &policy); err != nil {
		return nil, err
	}
	if err := validateTallyPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewTallyPolicyHolderWith(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated TallyPolicy
		if err := v.UnmarshalKey("tally", &updated); err != nil {
			log.Printf("[tally-policy] reload failed: %v", err)
			return
		}
		if err := validateTallyPolicy(updated); err != nil {
			log.Printf("[tally-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[tally-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *TallyPolicyHolder) Get() TallyPolicy {
	return h.current.Load().(TallyPolicy)
}

func validateTallyPolicy(policy TallyPolicy) error {
	if strings.TrimSpace(policy.Symbol) == "" {
		return errors.New("tally.symbol cannot be empty")
	}
	if policy.TopLimit <= 0 {
		return errors.New("tally.topLimit must be positive")
	}
	return nil
}
