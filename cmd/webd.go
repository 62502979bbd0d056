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
	"context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotblauer/geopulse/app"
	"github.com/rotblauer/geopulse/common"
	"github.com/rotblauer/geopulse/daemon/webd"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/platform/sim"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"log/slog"
	"os"
	"time"
)

var optSimPermission bool
var optSimLocationEnabled bool
var optSimAccelerometer bool
var optSimReplay string
var optSimReplayInterval time.Duration

// webdCmd represents the webd command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Run the tracker on a simulated device behind a web API",
	Long: `Runs the full tracking stack against a simulated device and serves it over HTTP.

Reads:

  GET  /status          phase, status message, path summary
  GET  /state           the latest tracking state
  GET  /path.geojson    the path as points and a line
  GET  /metrics         prometheus metrics
  GET  /socket          websocket; every new state is pushed

Control (require the token, if set, as the AuthorizationOfGeo header or ?api_token=):

  POST   /tracking/start
  POST   /tracking/stop
  POST   /permission    {"granted": true}
  DELETE /path

Simulated device:

  POST /sim/gps         {"enabled": false}
  POST /sim/permission  {"granted": false}
  POST /sim/fix         {"latitude": 46.9, "longitude": -114.0, "accuracy": 4}
  POST /sim/fixes       NDJSON fixes
  POST /sim/accel       {"x": 0.1, "y": 0.2, "z": 9.8}

Examples:

  geopulse webd --address localhost:3000 --replay walk.ndjson --replay-interval 1s
  curl -X POST localhost:3000/tracking/start
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		config, err := appConfig()
		if err != nil {
			log.Fatalln(err)
		}

		host := sim.NewHost(sim.HostConfig{
			Permission:      optSimPermission,
			LocationEnabled: optSimLocationEnabled,
			Accelerometer:   optSimAccelerometer,
		})
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a := app.New(host, config, reg)
		if err := a.Start(ctx); err != nil {
			log.Fatalln(err)
		}
		defer a.Close()

		server := webd.NewWebDaemon(&params.WebDaemonConfig{
			ListenerConfig: params.ListenerConfig{
				Network: "tcp",
				Address: viper.GetString("address"),
			},
			Token: viper.GetString("token"),
		}, a.Controller, host, reg)

		if optSimReplay != "" {
			go replayFixes(ctx, host, optSimReplay, optSimReplayInterval)
		}

		served := make(chan error, 1)
		go func() {
			served <- server.Run(ctx)
		}()

		select {
		case sig := <-common.Interrupted():
			slog.Warn("Received signal", "signal", sig)
			cancel()
			if err := <-served; err != nil {
				slog.Error("Web daemon shutdown", "error", err)
			}
		case err := <-served:
			if err != nil {
				log.Fatalln(err)
			}
		}
	},
}

// replayFixes feeds recorded fixes into the simulated provider, then returns.
// Fixes reported while location services are off are discarded, as on a device.
func replayFixes(ctx context.Context, host *sim.Host, name string, interval time.Duration) {
	f, err := os.Open(name)
	if err != nil {
		slog.Error("Failed to open replay", "error", err)
		return
	}
	defer f.Close()
	n, err := host.Provider.ReplayNDJSON(ctx, f, interval)
	if err != nil && ctx.Err() == nil {
		slog.Error("Replay failed", "fixes", n, "error", err)
		return
	}
	slog.Info("Replay done", "fixes", n)
}

func init() {
	rootCmd.AddCommand(webdCmd)

	defaults := params.DefaultWebDaemonConfig()

	flags := webdCmd.Flags()
	flags.String("address", defaults.Address, "HTTP address to listen on")
	flags.String("token", "", "Token required on control routes (or $"+params.EnvPrefix+"_TOKEN)")
	flags.BoolVar(&optSimPermission, "permission", true, "Simulated device starts with location permission")
	flags.BoolVar(&optSimLocationEnabled, "gps", true, "Simulated device starts with location services on")
	flags.BoolVar(&optSimAccelerometer, "accelerometer", true, "Simulated device has an accelerometer")
	flags.StringVar(&optSimReplay, "replay", "", "NDJSON fixes to report from the simulated provider")
	flags.DurationVar(&optSimReplayInterval, "replay-interval", time.Second, "Time between replayed fixes")
	bindFlags(flags)
}
