package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/m3rciful/coffeebot/coffee/app"
	"github.com/m3rciful/coffeebot/core/buildinfo"
	corecmd "github.com/m3rciful/coffeebot/core/cmd"
	"github.com/m3rciful/coffeebot/core/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the YAML configuration file",
		Value:   "configs/config.yaml",
		EnvVars: []string{"CONFIG_PATH"},
	}
	return &cli.App{
		Name:    "coffeebot",
		Usage:   "Telegram bot taking coffee orders",
		Version: buildinfo.String(),
		Flags:   []cli.Flag{configFlag},
		Action:  run,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "apply migrations and serve updates",
				Action: run,
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations and exit",
				Action: func(c *cli.Context) error {
					cfg, err := app.LoadConfig(c.String("config"))
					if err != nil {
						return err
					}
					defer func() { _ = logger.Shutdown() }()
					return app.Migrate(cfg)
				},
			},
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintln(c.App.Writer, buildinfo.String())
					return err
				},
			},
		},
	}
}

func run(c *cli.Context) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath: c.String("config"),
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*app.Config), app.Options{})
		},
	})
}
