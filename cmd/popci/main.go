// Command popci is the CI orchestrator entry point: thin flag parsing,
// config load, and a loop over internal/orchestrator.Run.
package main

import (
	"flag"
	"os"
	"time"

	alog "github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/pop-os/popci/internal/config"
	"github.com/pop-os/popci/internal/ctxutil"
	"github.com/pop-os/popci/internal/errs"
	"github.com/pop-os/popci/internal/orchestrator"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "config.toml", "path to the TOML configuration file")
		once       = flag.Bool("once", false, "run a single pass and exit, instead of polling every -interval")
		interval   = flag.Duration("interval", 15*time.Minute, "how frequently to re-run the pipeline when not -once")
	)
	flag.Parse()

	alog.SetHandler(cli.Default)

	ctx, cancel := ctxutil.Interruptible()
	defer cancel()

	cfg, err := config.New(*configPath)
	if err != nil {
		alog.WithError(err).Error("fatal: unable to load configuration")
		return 1
	}

	for {
		if err := orchestrator.Run(ctx, cfg); err != nil {
			alog.WithField("error", errs.Chain(err)).Error("fatal: orchestrator run failed")
			return 1
		}

		if *once {
			return 0
		}

		select {
		case <-ctx.Done():
			return 0
		case <-time.After(*interval):
		}
	}
}
