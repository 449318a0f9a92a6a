package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/genesis"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/strategy"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the prefix of environment overrides, e.g. NAKA_SIM_ROUNDS.
const envPrefix = "NAKA_SIM"

// Config describes a single run of the network.
type Config struct {
	Scenario      string  `mapstructure:"scenario"`
	Seed          uint64  `mapstructure:"seed"`
	Rounds        int     `mapstructure:"rounds"`
	HonestNodes   int     `mapstructure:"honest_nodes"`
	AttackerShare float64 `mapstructure:"attacker_share"`
	ForkRound     int     `mapstructure:"fork_round"`
	Payment       uint64  `mapstructure:"payment"`
	TrafficRate   float64 `mapstructure:"traffic_rate"`
	Color         string  `mapstructure:"color"`
	LogPath       string  `mapstructure:"log_path"`

	Genesis struct {
		Target        string `mapstructure:"target"`
		MiningReward  uint64 `mapstructure:"mining_reward"`
		TransPerBlock uint16 `mapstructure:"trans_per_block"`
	} `mapstructure:"genesis"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scenario", string(strategy.Honest))
	v.SetDefault("seed", 1)
	v.SetDefault("rounds", 20)
	v.SetDefault("honest_nodes", 3)
	v.SetDefault("attacker_share", 0.4)
	v.SetDefault("fork_round", 3)
	v.SetDefault("payment", 50)
	v.SetDefault("traffic_rate", 0.5)
	v.SetDefault("color", "auto")
	v.SetDefault("log_path", "")

	gen := genesis.Default()
	v.SetDefault("genesis.target", "3fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	v.SetDefault("genesis.mining_reward", gen.MiningReward)
	v.SetDefault("genesis.trans_per_block", gen.TransPerBlock)
}

// Validate checks the values can run a scenario.
func (c Config) Validate() error {
	kind, err := strategy.Retrieve(c.Scenario)
	if err != nil {
		return err
	}

	switch {
	case c.Rounds <= 0:
		return errors.New("rounds must be positive")
	case c.HonestNodes < 2:
		return errors.New("honest_nodes must be at least 2")
	case kind != strategy.Honest && (c.AttackerShare <= 0 || c.AttackerShare >= 1):
		return errors.New("attacker_share must be between 0 and 1")
	case kind == strategy.DoubleSpend && (c.ForkRound < 1 || c.ForkRound >= c.Rounds):
		return errors.New("fork_round must fall inside the run")
	case kind == strategy.DoubleSpend && c.Payment == 0:
		return errors.New("payment must be positive")
	case c.TrafficRate < 0 || c.TrafficRate > 1:
		return errors.New("traffic_rate must be between 0 and 1")
	}

	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("color %q, want auto, always or never", c.Color)
	}

	return c.GenesisConfig().Validate()
}

// Kind returns the strategy of the attacker, honest when there is none.
func (c Config) Kind() strategy.Kind {
	kind, _ := strategy.Retrieve(c.Scenario)
	return kind
}

// GenesisConfig returns the genesis every node of the run starts from.
func (c Config) GenesisConfig() genesis.Genesis {
	gen := genesis.Default()
	gen.Target = c.Genesis.Target
	gen.MiningReward = c.Genesis.MiningReward
	gen.TransPerBlock = c.Genesis.TransPerBlock

	return gen
}

// =============================================================================

// LoadConfig reads the scenario from the file, the environment and the
// defaults in that order of precedence. An empty path looks for
// scenario.yaml in the working directory and falls back to the defaults.
func LoadConfig(configPath string) (Config, error) {
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// WatchConfig calls fn with the new scenario every time the file changes
// until the context is cancelled. Invalid edits are reported through onErr
// and the previous run stays in place.
func WatchConfig(ctx context.Context, configPath string, fn func(Config), onErr func(error)) error {
	if configPath == "" {
		return errors.New("watching needs a config file")
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	changes := make(chan struct{}, 1)
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	v.WatchConfig()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				cfg, err := unmarshal(v)
				if err != nil {
					onErr(err)
					continue
				}
				fn(cfg)
			}
		}
	}()

	return nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("scenario")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
