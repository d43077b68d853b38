package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/eco-monitor/cmd"
)

func main() {
	logLevel := &cli.StringFlag{
		Name:    "log-level",
		EnvVars: []string{"LOG_LEVEL"},
		Value:   "INFO",
	}

	app := &cli.App{
		Name:  "eco-monitor",
		Usage: "environment and soil monitoring dashboard for an ESP32 node",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "generate readings and serve the dashboard",
				Action: cmd.ServeCommand,
				Flags: []cli.Flag{
					logLevel,
					&cli.StringFlag{
						Name:    "listen-addr",
						EnvVars: []string{"LISTEN_ADDR"},
						Value:   "0.0.0.0:8080",
					},
					&cli.DurationFlag{
						Name:    "refresh-interval",
						EnvVars: []string{"REFRESH_INTERVAL"},
						Value:   5 * time.Second,
					},
					&cli.StringFlag{
						Name:    "database-url",
						EnvVars: []string{"DATABASE_URL"},
						Value:   "",
					},
					&cli.StringFlag{
						Name:    "mqtt-host",
						EnvVars: []string{"MQTT_HOST"},
						Value:   "",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "follow a running dashboard and log each snapshot",
				Action: cmd.WatchCommand,
				Flags: []cli.Flag{
					logLevel,
					&cli.StringFlag{
						Name:  "url",
						Value: "ws://localhost:8080/ws",
					},
					&cli.StringFlag{
						Name:    "token",
						EnvVars: []string{"DASHBOARD_TOKEN"},
					},
				},
			},
			{
				Name:      "hash-password",
				Usage:     "print the bcrypt hash for DASHBOARD_PASSWORD_HASH",
				ArgsUsage: "<password>",
				Action:    cmd.HashPasswordCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
