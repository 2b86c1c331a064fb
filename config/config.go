// Package config loads host-side settings for a callcore deployment from
// the environment and an optional .env file.
//
// The call core itself never reads configuration. Hosts load a Config and
// bridge it with CoordinatorOptions and MediaContext.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore"
	"github.com/opd-ai/callcore/call"
	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/group"
	"github.com/opd-ai/callcore/signaling"
)

// Environment variable names.
const (
	EnvMaxOfferAge          = "CALLCORE_MAX_OFFER_AGE"
	EnvSetupTimeout         = "CALLCORE_SETUP_TIMEOUT"
	EnvVideoRequestDebounce = "CALLCORE_VIDEO_REQUEST_DEBOUNCE"
	EnvPeekInterval         = "CALLCORE_PEEK_INTERVAL"
	EnvIterationInterval    = "CALLCORE_ITERATION_INTERVAL"
	EnvICEServers           = "CALLCORE_ICE_SERVERS"
	EnvICEUsername          = "CALLCORE_ICE_USERNAME"
	EnvICECredential        = "CALLCORE_ICE_CREDENTIAL"
	EnvHideIP               = "CALLCORE_HIDE_IP"
	EnvBandwidthMode        = "CALLCORE_BANDWIDTH_MODE"
	EnvLogLevel             = "CALLCORE_LOG_LEVEL"
	EnvRelayAddr            = "CALLCORE_RELAY_ADDR"
)

// DefaultRelayAddr is where the websocket relay listens by default.
const DefaultRelayAddr = "127.0.0.1:8765"

// Config holds the host configuration.
type Config struct {
	MaxOfferAge          time.Duration
	SetupTimeout         time.Duration
	VideoRequestDebounce time.Duration
	PeekInterval         time.Duration
	IterationInterval    time.Duration

	ICEServers    []string
	ICEUsername   string
	ICECredential string
	HideIP        bool
	BandwidthMode signaling.BandwidthMode

	LogLevel  logrus.Level
	RelayAddr string
}

// Load reads the given .env files, or ./.env when none are named, and then
// the environment. Environment variables take precedence over file values.
// A missing ./.env is not an error; a missing named file is.
func Load(files ...string) (*Config, error) {
	fileValues, err := readFiles(files)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileValues[key]
		return v, ok
	}

	cfg := &Config{
		ICEUsername:   getEnv(lookup, EnvICEUsername, ""),
		ICECredential: getEnv(lookup, EnvICECredential, ""),
		RelayAddr:     getEnv(lookup, EnvRelayAddr, DefaultRelayAddr),
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{EnvMaxOfferAge, call.DefaultMaxOfferAge, &cfg.MaxOfferAge},
		{EnvSetupTimeout, call.DefaultSetupTimeout, &cfg.SetupTimeout},
		{EnvVideoRequestDebounce, group.DefaultVideoRequestDebounce, &cfg.VideoRequestDebounce},
		{EnvPeekInterval, group.DefaultPeekInterval, &cfg.PeekInterval},
		{EnvIterationInterval, callcore.DefaultIterationInterval, &cfg.IterationInterval},
	}
	for _, d := range durations {
		v, err := parseDuration(lookup, d.key, d.fallback)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	for _, server := range strings.Split(getEnv(lookup, EnvICEServers, ""), ",") {
		if server = strings.TrimSpace(server); server != "" {
			cfg.ICEServers = append(cfg.ICEServers, server)
		}
	}

	hideIP, err := strconv.ParseBool(getEnv(lookup, EnvHideIP, "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvHideIP, err)
	}
	cfg.HideIP = hideIP

	mode, err := signaling.ParseBandwidthModeName(getEnv(lookup, EnvBandwidthMode, "normal"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvBandwidthMode, err)
	}
	cfg.BandwidthMode = mode

	level, err := logrus.ParseLevel(getEnv(lookup, EnvLogLevel, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvLogLevel, err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

func readFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		values, err := godotenv.Read()
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return values, err
	}
	values, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("read env files: %w", err)
	}
	return values, nil
}

func getEnv(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func parseDuration(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(lookup, key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

// ApplyLogging sets the global logrus level.
func (c *Config) ApplyLogging() {
	logrus.SetLevel(c.LogLevel)
	logrus.WithFields(logrus.Fields{
		"function": "ApplyLogging",
		"level":    c.LogLevel.String(),
	}).Debug("Log level applied")
}

// CoordinatorOptions returns the coordinator tuning from c.
func (c *Config) CoordinatorOptions() callcore.Options {
	return callcore.Options{
		MaxOfferAge:          c.MaxOfferAge,
		SetupTimeout:         c.SetupTimeout,
		VideoRequestDebounce: c.VideoRequestDebounce,
		PeekInterval:         c.PeekInterval,
		IterationInterval:    c.IterationInterval,
	}
}

// MediaContext returns the ICE configuration passed to Proceed.
func (c *Config) MediaContext() call.MediaContext {
	media := call.MediaContext{HideIP: c.HideIP}
	if len(c.ICEServers) > 0 {
		media.ICEServers = []engine.IceServer{{
			URLs:       append([]string(nil), c.ICEServers...),
			Username:   c.ICEUsername,
			Credential: c.ICECredential,
		}}
	}
	return media
}
