// Package config loads the INI configuration file spec.md §6 describes,
// using gopkg.in/ini.v1 (an indirect dependency of the teacher repo,
// pulled in here directly since it is the exact fit for the engine's
// config format). Struct-with-tags plus a separate Validate pass mirrors
// the teacher's internal/config/config.go (a tagged Config struct) and
// validation.go (a dedicated validation pass).
package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"

	"github.com/antoniogi/dabmpi/internal/agent"
	"github.com/antoniogi/dabmpi/internal/dabcontext"
)

// CommModel selects the transport topology (spec.md §5/§6).
type CommModel string

const (
	DriverWorker CommModel = "DRIVERWORKER"
	All2All      CommModel = "ALL2ALL"
)

// Config is the parsed INI configuration (spec.md §6).
type Config struct {
	// General
	CommModel CommModel
	Transport string   // "tcp" (default) or "libp2p", DRIVERWORKER only
	Peers     []string // rank -> address, only consulted by the libp2p/tcp transports

	// Algorithm
	Runtime       time.Duration
	Objective     dabcontext.Objective
	PendingSize   int
	EliteQueue    int

	// Bees
	NEmployed            int
	NOnlooker            int
	IterationsAbandoned  int
	ProbEmployedChange   float64
	ProbOnlookerChange   float64
	OnlookerModFactor    float64
	UseProbMatrix        bool
}

// SafetyMargin is the fixed 5-minute deadline-approach window spec.md §5
// mandates; it is not configurable.
const SafetyMargin = 5 * time.Minute

// Load reads path as an INI file and returns a validated Config.
// Missing required options (spec.md §7: a Configuration error) make Load
// fail — this is fatal at startup per spec.md §7.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	cfg := defaults()

	general := f.Section("General")
	if v := general.Key("commModel").String(); v != "" {
		cfg.CommModel = CommModel(v)
	}
	cfg.Transport = general.Key("transport").MustString(cfg.Transport)
	cfg.Peers = general.Key("peers").Strings(",")

	alg := f.Section("Algorithm")
	if !alg.HasKey("time") {
		return nil, fmt.Errorf("config: [Algorithm] time is required")
	}
	seconds, err := alg.Key("time").Int()
	if err != nil {
		return nil, fmt.Errorf("config: [Algorithm] time: %w", err)
	}
	cfg.Runtime = time.Duration(seconds) * time.Second

	switch alg.Key("objective").MustString("max") {
	case "max":
		cfg.Objective = dabcontext.Maximize
	case "min":
		cfg.Objective = dabcontext.Minimize
	default:
		return nil, fmt.Errorf("config: [Algorithm] objective must be max or min")
	}
	cfg.PendingSize = alg.Key("pendingSize").MustInt(cfg.PendingSize)
	cfg.EliteQueue = alg.Key("eliteQueue").MustInt(cfg.EliteQueue)

	bees := f.Section("Bees")
	cfg.NEmployed = bees.Key("nemployed").MustInt(cfg.NEmployed)
	cfg.NOnlooker = bees.Key("nonlooker").MustInt(cfg.NOnlooker)
	cfg.IterationsAbandoned = bees.Key("iterationsAbandoned").MustInt(cfg.IterationsAbandoned)
	cfg.ProbEmployedChange = bees.Key("probEmployedChange").MustFloat64(cfg.ProbEmployedChange)
	cfg.ProbOnlookerChange = bees.Key("probOnlookerChange").MustFloat64(cfg.ProbOnlookerChange)
	cfg.OnlookerModFactor = bees.Key("onlookerModFactor").MustFloat64(cfg.OnlookerModFactor)
	cfg.UseProbMatrix = bees.Key("useProbMatrix").MustBool(cfg.UseProbMatrix)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		CommModel:           DriverWorker,
		Transport:           "tcp",
		Objective:           dabcontext.Maximize,
		PendingSize:         20,
		EliteQueue:          50,
		NEmployed:           4,
		NOnlooker:           8,
		IterationsAbandoned: 20,
		ProbEmployedChange:  1,
		ProbOnlookerChange:  1,
		OnlookerModFactor:   0.1,
		UseProbMatrix:       false,
	}
}

// Validate checks the cross-field invariants Load can't check key-by-key.
func (c *Config) Validate() error {
	if c.Runtime <= 0 {
		return fmt.Errorf("config: [Algorithm] time must be positive")
	}
	if c.PendingSize <= 0 {
		return fmt.Errorf("config: [Algorithm] pendingSize must be positive")
	}
	if c.EliteQueue <= 0 {
		return fmt.Errorf("config: [Algorithm] eliteQueue must be positive")
	}
	if c.NEmployed < 0 || c.NOnlooker < 0 {
		return fmt.Errorf("config: [Bees] nemployed/nonlooker must be non-negative")
	}
	if c.CommModel != DriverWorker && c.CommModel != All2All {
		return fmt.Errorf("config: [General] commModel must be DRIVERWORKER or ALL2ALL, got %q", c.CommModel)
	}
	if c.Transport != "tcp" && c.Transport != "libp2p" {
		return fmt.Errorf("config: [General] transport must be tcp or libp2p, got %q", c.Transport)
	}
	return nil
}

// AgentConfig projects the Bees section into the agent package's Config.
func (c *Config) AgentConfig() agent.Config {
	return agent.Config{
		ProbEmployedChange: c.ProbEmployedChange,
		ProbOnlookerChange: c.ProbOnlookerChange,
		OnlookerModFactor:  c.OnlookerModFactor,
		IterAbandoned:      c.IterationsAbandoned,
	}
}
