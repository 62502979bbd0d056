package params

import (
	"github.com/mitchellh/go-homedir"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	AppName = "geopulse"

	// ConfigFileName is looked up (without extension) in DatadirRoot and
	// the working directory. Any format viper understands works.
	ConfigFileName = "geopulse"

	// EnvPrefix prefixes environment overrides, eg. GEOPULSE_MAX_ACCURACY.
	EnvPrefix = "GEOPULSE"
)

// DatadirRoot is where the config file lives, ~/.geopulse by default.
var DatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		slog.Warn("No home dir, using working dir", "error", err)
		wd, _ := os.Getwd()
		return filepath.Join(wd, "."+AppName)
	}
	return filepath.Join(home, "."+AppName)
}()

// AppConfig collects the configuration of the whole tracking stack.
type AppConfig struct {
	Source     *SourceConfig
	Pipeline   *PipelineConfig
	Tracker    *TrackerConfig
	Controller *ControllerConfig
}

func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Source:     DefaultSourceConfig(),
		Pipeline:   DefaultPipelineConfig(),
		Tracker:    DefaultTrackerConfig(),
		Controller: DefaultControllerConfig(),
	}
}
