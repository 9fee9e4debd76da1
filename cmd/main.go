// cmd/main.go

package main

import (
	"os"

	"BytesQuilt/pkg/utils"
	"BytesQuilt/pkg/version"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var logger = utils.GetLogger("bytesquilt")

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"debug", "v"},
			Usage:   "enable debug log",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "only warning and errors",
		},
		&cli.StringFlag{
			Name:  "log",
			Usage: "path of the log file (default: stderr)",
		},
	}
}

func setLoggerLevel(c *cli.Context) {
	if path := c.String("log"); path != "" {
		utils.SetOutFile(path)
	}
	if c.Bool("quiet") {
		utils.SetLogLevel(logrus.WarnLevel)
	} else if c.Bool("verbose") {
		utils.SetLogLevel(logrus.DebugLevel)
	} else {
		utils.SetLogLevel(logrus.InfoLevel)
	}
}

func main() {
	app := &cli.App{
		Name:    "bytesquilt",
		Usage:   "reassemble byte streams delivered out of order",
		Version: version.Version(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			scatterFlags(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("%s", err)
	}
}
