// Package cli contains the pathtracker command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	generalFlagConfig   = "config"
	generalFlagDebug    = "debug"
	generalFlagLogLevel = "log-level"

	replayFlagTail   = "tail"
	replayFlagOutput = "output"
	replayFlagPlot   = "plot"

	smoothFlagPath      = "path"
	smoothFlagPlot      = "plot"
	smoothFlagCurvature = "curvature-plot"
)

var app = &cli.App{
	Name:            "pathtracker",
	Usage:           "follow planned paths with a differential drive base",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     generalFlagConfig,
			Aliases:  []string{"c"},
			Required: true,
			Usage:    "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  generalFlagLogLevel,
			Usage: "override the configured log level (debug, info, warn, error)",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "check-config",
			Usage:  "validate the configuration and print it with defaults filled in",
			Action: CheckConfigAction,
		},
		{
			Name:      "replay",
			Usage:     "run the tracker over the path, odometry and user command topics of a ROS bag",
			UsageText: "pathtracker -c <config> replay [options] <bag>",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  replayFlagTail,
					Value: 0,
					Usage: "keep ticking this long after the last message",
				},
				&cli.StringFlag{
					Name:  replayFlagOutput,
					Usage: "write every published output as JSON lines to `FILE`",
				},
				&cli.StringFlag{
					Name:  replayFlagPlot,
					Usage: "save a top-down plot of the run to `FILE` (png)",
				},
			},
			Action: ReplayAction,
		},
		{
			Name:  "smooth",
			Usage: "smooth a nav_msgs/Path given as JSON and print the smoothed points",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  smoothFlagPath,
					Usage: "read the path message from `FILE` instead of stdin",
				},
				&cli.StringFlag{
					Name:  smoothFlagPlot,
					Usage: "save a top-down plot of the smoothed path to `FILE` (png)",
				},
				&cli.StringFlag{
					Name:  smoothFlagCurvature,
					Usage: "save a curvature plot of the smoothed path to `FILE` (png)",
				},
			},
			Action: SmoothAction,
		},
		{
			Name: "follow",
			Usage: "run the control loop on JSON lines of {\"topic\", \"data\"} messages read from stdin, " +
				"publishing outputs as JSON lines on stdout",
			Action: FollowAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
