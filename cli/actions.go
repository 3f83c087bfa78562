package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"github.com/steerlab/pathtracker/config"
	"github.com/steerlab/pathtracker/logging"
	"github.com/steerlab/pathtracker/replay"
	"github.com/steerlab/pathtracker/ros"
	"github.com/steerlab/pathtracker/trajectory"
	"github.com/steerlab/pathtracker/viz"
)

// loadConfig reads the configuration named by the global flags and builds the logger for a
// command. Log lines go to the error writer so stdout only carries command output.
func loadConfig(c *cli.Context) (*config.Config, logging.Logger, error) {
	cfg, err := config.Read(c.String(generalFlagConfig))
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Level()
	if name := c.String(generalFlagLogLevel); name != "" {
		level, err = logging.LevelFromString(name)
		if err != nil {
			return nil, nil, err
		}
	}
	if c.Bool(generalFlagDebug) {
		level = logging.DEBUG
	}

	return cfg, logging.NewLogger("pathtracker", c.App.ErrWriter, level), nil
}

// CheckConfigAction validates the configuration and prints it with defaults applied.
func CheckConfigAction(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

// ReplayAction runs the tracker over a recorded bag and prints a summary of the run.
func ReplayAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("replay takes exactly one bag file")
	}
	bagPath := c.Args().First()

	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(logger.Sync)

	rb, err := ros.ReadBag(bagPath)
	if err != nil {
		return err
	}
	timeline, err := replay.FromBag(rb, cfg.Topics)
	if err != nil {
		return err
	}
	logger.Infow("replaying bag", "bag", bagPath, "events", len(timeline))

	opts := replay.Options{Tail: c.Duration(replayFlagTail)}
	if outPath := c.String(replayFlagOutput); outPath != "" {
		//nolint:gosec
		f, err := os.Create(outPath)
		if err != nil {
			return errors.Wrap(err, "failed to create output file")
		}
		defer utils.UncheckedErrorFunc(f.Close)
		opts.Output = f
	}

	summary, err := replay.Run(c.Context, cfg, timeline, opts, logger.Sublogger("replay"))
	if err != nil {
		return err
	}
	printSummary(c.App.Writer, summary)

	if plotPath := c.String(replayFlagPlot); plotPath != "" {
		p, err := viz.TopDown(viz.Scene{
			Title:     filepath.Base(bagPath),
			Waypoints: summary.Waypoints,
			Smoothed:  summary.Smoothed,
			Track:     summary.Track,
		})
		if err != nil {
			return err
		}
		if err := viz.SavePNG(p, plotPath); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, summary *replay.Summary) {
	fmt.Fprintf(w, "ticks:          %d\n", summary.Ticks)
	states := lo.Keys(summary.States)
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	for _, state := range states {
		fmt.Fprintf(w, "  %-14s%d\n", state.String()+":", summary.States[state])
	}
	fmt.Fprintf(w, "linear (m/s):   mean %.3f max %.3f\n", summary.MeanLinear, summary.MaxLinear)
	fmt.Fprintf(w, "angular (rad/s): mean |%.3f| max |%.3f|\n", summary.MeanAbsAngular, summary.MaxAbsAngular)
	fmt.Fprintf(w, "progress:       %.2f\n", summary.FinalProgress)
	fmt.Fprintf(w, "goal reached:   %t\n", summary.GoalReached)
}

// SmoothAction smooths a path message the way the tracker does before following it.
func SmoothAction(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}

	r := c.App.Reader
	if pathFile := c.String(smoothFlagPath); pathFile != "" {
		//nolint:gosec
		f, err := os.Open(pathFile)
		if err != nil {
			return errors.Wrap(err, "failed to open path file")
		}
		defer utils.UncheckedErrorFunc(f.Close)
		r = f
	}
	var data map[string]interface{}
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return errors.Wrap(err, "cannot parse path message")
	}
	msg, err := ros.DecodePath(data)
	if err != nil {
		return err
	}
	waypoints := msg.Waypoints()
	if cfg.WaypointOrder == config.WaypointOrderReverse {
		waypoints = lo.Reverse(waypoints)
	}

	smoothed, err := trajectory.CubicSpline{}.Smooth(waypoints, cfg.SmoothingStep())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(smoothed); err != nil {
		return err
	}

	if plotPath := c.String(smoothFlagPlot); plotPath != "" {
		p, err := viz.TopDown(viz.Scene{Title: "smoothed path", Waypoints: waypoints, Smoothed: smoothed})
		if err != nil {
			return err
		}
		if err := viz.SavePNG(p, plotPath); err != nil {
			return err
		}
	}
	if plotPath := c.String(smoothFlagCurvature); plotPath != "" {
		p, err := viz.Curvature("curvature", smoothed)
		if err != nil {
			return err
		}
		if err := viz.SavePNG(p, plotPath); err != nil {
			return err
		}
	}
	return nil
}
