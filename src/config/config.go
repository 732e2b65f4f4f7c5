package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"asteroid-miner/src/screenshot"
)

const (
	EnvPathEnvVar = "ASTEROID_MINER_ENV"

	StatusModeLog      = "log"
	StatusModeTerminal = "terminal"
	StatusModeTray     = "tray"
)

var (
	DefaultOverviewRegion = screenshot.Region{X: 800, Y: 100, Width: 400, Height: 600}
	DefaultSafeSpot       = screenshot.Point{X: 200, Y: 200}
)

type LoadOptions struct {
	EnvPathOverride    string
	StatusModeOverride string
}

type Config struct {
	OverviewRegion screenshot.Region
	SafeSpot       screenshot.Point

	ApproachKey    string
	LockKey        string
	ActivationKeys []string
	StopCombo      []string

	LockRangeMeters float64
	LockSettle      time.Duration
	PollInterval    time.Duration
	LostTargetPolls int

	AsteroidMarkers []string
	HostileMarkers  []string
	Ores            []string

	StopHotkey     string
	ToggleHotkey   string
	FailsafeCorner bool

	TesseractLang      string
	OCRWorkers         int
	OCRHashDistance    int
	OCRDebugSaveImages bool

	EnableFileLogging bool
	StatusMode        string
	Alarm             bool

	ControlPortStart int
	ControlPortEnd   int
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order: explicit override path, .env next to the executable,
	// then the file named by ASTEROID_MINER_ENV. Process environment always wins over
	// file values because godotenv.Load never overwrites.
	if envPath := resolveEnvPath(opts); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		OverviewRegion: DefaultOverviewRegion,
		SafeSpot:       DefaultSafeSpot,

		ApproachKey:    getEnvWithDefault("APPROACH_KEY", "q"),
		LockKey:        getEnvWithDefault("LOCK_KEY", "ctrl"),
		ActivationKeys: getListWithDefault("ACTIVATION_KEYS", []string{"f1", "f2"}),
		StopCombo:      parseCombo(getEnvWithDefault("STOP_COMBO", "ctrl+space")),

		LockRangeMeters: getFloatWithDefault("LOCK_RANGE_M", 15000),
		LockSettle:      getMillisWithDefault("LOCK_SETTLE_MS", 2000),
		PollInterval:    getMillisWithDefault("POLL_INTERVAL_MS", 1000),
		LostTargetPolls: getIntWithDefault("LOST_TARGET_POLLS", 1),

		AsteroidMarkers: getListWithDefault("ASTEROID_MARKERS", []string{"Asteroid"}),
		HostileMarkers:  getListWithDefault("HOSTILE_MARKERS", []string{"Hostile", "Player"}),
		Ores: getListWithDefault("ORES", []string{
			"Veldspar", "Scordite", "Pyroxeres", "Plagioclase",
			"Kernite", "Jaspet", "Omber", "Hemorphite", "Hedbergite",
		}),

		StopHotkey:     getEnvWithDefault("STOP_HOTKEY", "Ctrl+Alt+X"),
		ToggleHotkey:   getEnvWithDefault("TOGGLE_HOTKEY", "Ctrl+Alt+M"),
		FailsafeCorner: getBoolWithDefault("FAILSAFE_CORNER", true),

		TesseractLang:      getEnvWithDefault("TESSERACT_LANG", "eng"),
		OCRWorkers:         getIntWithDefault("OCR_WORKERS", 0),
		OCRHashDistance:    getIntWithDefault("OCR_HASH_DISTANCE", 2),
		OCRDebugSaveImages: getBoolWithDefault("OCR_DEBUG_SAVE_IMAGES", false),

		EnableFileLogging: getBoolWithDefault("ENABLE_FILE_LOGGING", false),
		StatusMode:        resolveStatusModeValue(opts),
		Alarm:             getBoolWithDefault("ALARM", true),

		ControlPortStart: getIntWithDefault("CONTROL_PORT_START", 49600),
		ControlPortEnd:   getIntWithDefault("CONTROL_PORT_END", 49610),
	}

	if v := strings.TrimSpace(os.Getenv("OVERVIEW_REGION")); v != "" {
		r, err := screenshot.ParseRegion(v)
		if err != nil {
			return nil, fmt.Errorf("OVERVIEW_REGION: %w", err)
		}
		cfg.OverviewRegion = r
	}
	if v := strings.TrimSpace(os.Getenv("SAFE_SPOT")); v != "" {
		p, err := screenshot.ParsePoint(v)
		if err != nil {
			return nil, fmt.Errorf("SAFE_SPOT: %w", err)
		}
		cfg.SafeSpot = p
	}

	if len(cfg.StopCombo) == 0 {
		return nil, fmt.Errorf("STOP_COMBO must name at least one key")
	}
	if cfg.LostTargetPolls < 1 {
		cfg.LostTargetPolls = 1
	}
	if cfg.LockRangeMeters <= 0 {
		return nil, fmt.Errorf("LOCK_RANGE_M must be positive, got %v", cfg.LockRangeMeters)
	}

	return cfg, nil
}

func resolveEnvPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.EnvPathOverride); p != "" {
		return p
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getListWithDefault(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getIntWithDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}

func getFloatWithDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getMillisWithDefault(key string, defaultMillis int) time.Duration {
	return time.Duration(getIntWithDefault(key, defaultMillis)) * time.Millisecond
}

func getBoolWithDefault(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// parseCombo splits "ctrl+space" into lower-case key names.
func parseCombo(combo string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}

func resolveStatusMode(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "tui", StatusModeTerminal:
		return StatusModeTerminal
	case StatusModeTray:
		return StatusModeTray
	default:
		return StatusModeLog
	}
}

func resolveStatusModeValue(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.StatusModeOverride); override != "" {
		return resolveStatusMode(override)
	}
	return resolveStatusMode(os.Getenv("STATUS_MODE"))
}
