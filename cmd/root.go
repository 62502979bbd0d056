/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"github.com/rotblauer/geopulse/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"strings"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   params.AppName,
	Short: "Track location while moving",
	Long: `geopulse reduces a positioning provider's raw fixes to the fixes taken
while actually moving, and keeps a tracking session alive across
permission and location-services changes.

Settings come from flags, then GEOPULSE_* environment variables
(eg. GEOPULSE_MAX_ACCURACY=20), then ~/.geopulse/geopulse.yaml.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is %s/%s.yaml)", params.DatadirRoot, params.ConfigFileName))
	pFlags.Int("verbosity", int(slog.LevelInfo), "Log level: -4 debug, 0 info, 4 warn, 8 error")

	motion := params.DefaultMotionConfig()
	movement := params.DefaultMovementConfig()
	source := params.DefaultSourceConfig()
	pipeline := params.DefaultPipelineConfig()
	controller := params.DefaultControllerConfig()

	pFlags.String("mode", string(pipeline.Mode), fmt.Sprintf("Pipeline mode: %s, %s or %s", params.ModeFilter, params.ModeGated, params.ModeGatedFilter))
	pFlags.Duration("meter-interval", pipeline.MeterInterval, "How often fix rates are logged (0 disables)")
	pFlags.Float32("max-accuracy", motion.MaxAccuracyMeters, "Reject fixes with worse horizontal accuracy (meters)")
	pFlags.Float32("min-displacement", motion.MinDisplacementMeters, "Least displacement that counts as movement (meters)")
	pFlags.Float32("min-speed", motion.MinSpeedMps, "Reported speed under which marginal displacement is drift (m/s, 0 disables)")
	pFlags.Float64("speed-margin", motion.SpeedCorroborationMargin, "Multiple of the displacement threshold a slow fix must clear")
	pFlags.Float64("move-threshold", movement.MoveThreshold, "Linear acceleration counted as a movement hit (m/s^2)")
	pFlags.Int("move-count", movement.MoveCountTrigger, "Consecutive hits before the detector reports movement")
	pFlags.Duration("still-timeout", movement.StillTimeout, "Quiet time after which the detector reports stationary")
	pFlags.Int("dedupe", source.DedupeSize, "Number of recent fixes remembered to drop exact repeats (0 disables)")
	pFlags.Duration("poll-interval", controller.PollInterval, "How often permission and location services are re-read")

	bindFlags(pFlags)
}

// bindFlags makes flags readable through viper, so that env and config file can set them too.
func bindFlags(flags *pflag.FlagSet) {
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(params.DatadirRoot)
		viper.AddConfigPath(".")
		viper.SetConfigName(params.ConfigFileName)
	}

	viper.SetEnvPrefix(params.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.Level(viper.GetInt("verbosity"))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
	slog.Debug("Logging", "cmd", cmd.Name(), "args", args, "level", level)
}

// appConfig builds the tracking stack configuration from flags, env and config file.
func appConfig() (*params.AppConfig, error) {
	mode, err := params.ParsePipelineMode(viper.GetString("mode"))
	if err != nil {
		return nil, err
	}
	config := params.DefaultAppConfig()
	config.Pipeline.Mode = mode
	config.Pipeline.MeterInterval = viper.GetDuration("meter-interval")

	config.Pipeline.Motion.MaxAccuracyMeters = float32(viper.GetFloat64("max-accuracy"))
	config.Pipeline.Motion.MinDisplacementMeters = float32(viper.GetFloat64("min-displacement"))
	config.Pipeline.Motion.MinSpeedMps = float32(viper.GetFloat64("min-speed"))
	config.Pipeline.Motion.SpeedCorroborationMargin = viper.GetFloat64("speed-margin")

	config.Pipeline.Movement.MoveThreshold = viper.GetFloat64("move-threshold")
	config.Pipeline.Movement.MoveCountTrigger = viper.GetInt("move-count")
	config.Pipeline.Movement.StillTimeout = viper.GetDuration("still-timeout")

	config.Source.DedupeSize = viper.GetInt("dedupe")
	config.Controller.PollInterval = viper.GetDuration("poll-interval")
	return config, nil
}
