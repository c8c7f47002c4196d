package main

import (
	"log/slog"
	"os"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "group chat moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for persistence; mem stores when empty",
			EnvVars: []string{"WARDEN_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin/debug API",
			Value:   ":3899",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3898",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.Int64SliceFlag{
			Name:    "support-staff",
			Usage:   "user IDs exempt from moderation everywhere (owner, devs, sudo)",
			EnvVars: []string{"WARDEN_SUPPORT_STAFF"},
		},
		&cli.IntFlag{
			Name:    "roster-rate-limit",
			Usage:   "max admin roster listings per second against the platform API",
			Value:   10,
			EnvVars: []string{"WARDEN_ROSTER_RATE_LIMIT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		srv, err := NewServer(Config{
			RedisURL:        cctx.String("redis-url"),
			SupportStaff:    cctx.Int64Slice("support-staff"),
			RosterRateLimit: cctx.Int("roster-rate-limit"),
			Logger:          logger,
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				logger.Error("failed to start metrics endpoint", "error", err)
				os.Exit(-1)
			}
		}()

		return srv.RunAPI(cctx.String("bind"))
	},
}
