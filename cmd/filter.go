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
	"encoding/json"
	"fmt"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/geopulse/common"
	"github.com/rotblauer/geopulse/controller"
	"github.com/rotblauer/geopulse/location"
	"github.com/rotblauer/geopulse/types/geopoint"
	"github.com/spf13/cobra"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
)

var optFilterGeoJSON bool

// filterCmd represents the filter command
var filterCmd = &cobra.Command{
	Use:   "filter [file.ndjson]",
	Short: "Filter recorded fixes down to movement",
	Long: `Reads newline-delimited fixes from a file or stdin, runs them through
the moving-location pipeline, and writes the accepted fixes to stdout.

Both flat fixes and GeoJSON point features are understood:

  {"latitude": 46.9, "longitude": -114.0, "accuracy": 4, "speed": 1.2, "time": 1731952467293}
  {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-114.0, 46.9]}, "properties": {"Accuracy": 4}}

There is no accelerometer for recorded input, so the gated modes pass everything the motion filter does.

Examples:

  geopulse filter walk.ndjson --max-accuracy 20 > moving.ndjson
  zcat day.ndjson.gz | geopulse filter --geojson > day.geojson
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		config, err := appConfig()
		if err != nil {
			log.Fatalln(err)
		}
		if config.Pipeline.Mode.Gated() {
			slog.Warn("No accelerometer for recorded input, movement gate is open", "mode", config.Pipeline.Mode)
		}

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			in = f
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-common.Interrupted():
				slog.Warn("Interrupted")
				cancel()
			case <-ctx.Done():
			}
		}()

		provider := &readerProvider{r: in}
		repo := location.NewRepository(location.NewSource(provider, config.Source), nil, config.Pipeline)
		moving, err := repo.ObserveMovingLocations(ctx)
		if err != nil {
			log.Fatalln(err)
		}

		path, err := writeFixes(os.Stdout, moving, optFilterGeoJSON)
		if err != nil {
			log.Fatalln(err)
		}
		if err := provider.Err(); err != nil {
			log.Fatalln(err)
		}
		slog.Info("Filtered", "summary", controller.Summarize(path).String())
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.Flags().BoolVar(&optFilterGeoJSON, "geojson", false, "Write a GeoJSON FeatureCollection (points and path) instead of NDJSON")
}

// readerProvider is a one-shot positioning provider over recorded NDJSON fixes.
type readerProvider struct {
	r io.Reader

	once sync.Once
	errs <-chan error
}

func (p *readerProvider) RequestLocationUpdates(ctx context.Context, _ location.Request) (<-chan geopoint.GeoPoint, error) {
	var fixes <-chan geopoint.GeoPoint
	p.once.Do(func() {
		fixes, p.errs = geopoint.ScanNDJSON(ctx, p.r)
	})
	if fixes == nil {
		return nil, fmt.Errorf("recorded fixes can only be read once")
	}
	return fixes, nil
}

func (p *readerProvider) LastKnownLocation() (geopoint.GeoPoint, bool) {
	return geopoint.GeoPoint{}, false
}

// Err returns the read error, if any, once the fixes are drained.
func (p *readerProvider) Err() error {
	if p.errs == nil {
		return nil
	}
	return <-p.errs
}

// writeFixes drains fixes to w and returns them.
func writeFixes(w io.Writer, fixes <-chan geopoint.GeoPoint, asGeoJSON bool) ([]geopoint.GeoPoint, error) {
	var path geopoint.GeoPoints
	enc := json.NewEncoder(w)
	for p := range fixes {
		path = append(path, p)
		if asGeoJSON {
			continue
		}
		if err := enc.Encode(p); err != nil {
			return path, err
		}
	}
	if !asGeoJSON {
		return path, nil
	}
	fc := geojson.NewFeatureCollection()
	for _, p := range path {
		fc.Append(p.Feature())
	}
	if len(path) > 1 {
		fc.Append(geojson.NewFeature(path.LineString()))
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return path, err
	}
	_, err = w.Write(append(b, '\n'))
	return path, err
}
