// Command fand drives a single cooling fan from the hottest CPU temperature.
//
// It takes fan control away from the firmware at startup and hands it back on
// every exit path: normal stop, SIGINT/SIGHUP/SIGTERM, or a fatal error.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fand/internal/config"
	"fand/internal/fancontrol"
	"fand/internal/metrics"
	"fand/internal/pidfile"
	"fand/internal/sensors"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

var (
	notifySignals = signal.Notify
	discoverFn    = sensors.Discover
	newActuatorFn = fancontrol.NewActuator
)

type options struct {
	configPath string
	pidfile    string
	envFile    string
	verbose    bool
	dryRun     bool
	foreground bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("fand", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "c", "", "Path to YAML config")
	fs.StringVar(&o.pidfile, "p", "", `Pidfile path (overrides config); "none" disables the instance lock`)
	fs.StringVar(&o.envFile, "e", "", "Environment file with FAND_* overrides")
	fs.BoolVar(&o.verbose, "v", false, "Verbose diagnostics")
	fs.BoolVar(&o.dryRun, "n", false, "Dry run: read sensors, never touch the fan")
	fs.BoolVar(&o.foreground, "f", false, "Stay in the foreground")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: fand [-fnv] [-c config] [-e envfile] [-p pidfile]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return options{}, errors.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// envLookup prefers the process environment and falls back to the env file,
// the same precedence godotenv.Load gives.
func envLookup(path string) (func(string) (string, bool), error) {
	if path == "" {
		return os.LookupEnv, nil
	}
	file, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read env file %s", path)
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}, nil
}

// loadConfig applies the file, then FAND_* variables, then flags.
func loadConfig(o options, lookup func(string) (string, bool)) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return config.Config{}, errors.Wrap(err, "config load failed")
		}
	}
	if err := config.ApplyEnv(&cfg, lookup); err != nil {
		return config.Config{}, err
	}
	if o.pidfile != "" {
		cfg.Pidfile = o.pidfile
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func main() {
	os.Exit(runMain(os.Args[1:]))
}

func runMain(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err == flag.ErrHelp {
		return exitOK
	}
	if err != nil {
		return exitUsage
	}

	lookup, err := envLookup(opts.envFile)
	if err != nil {
		log.Error(err)
		return exitFatal
	}
	cfg, err := loadConfig(opts, lookup)
	if err != nil {
		log.Error(err)
		return exitFatal
	}
	logFile, err := setupLogging(cfg.Log)
	if err != nil {
		log.Error(err)
		return exitFatal
	}
	if logFile != nil {
		defer logFile.Close()
	}

	if !opts.foreground && !isDaemonChild() {
		if cfg.LockEnabled() {
			if err := pidfile.Check(cfg.Pidfile); err != nil {
				log.Error(err)
				return exitFatal
			}
		}
		pid, err := daemonize(args)
		if err != nil {
			log.Errorf("could not daemonize: %v", err)
			return exitFatal
		}
		log.Debugf("detached, pid %d", pid)
		return exitOK
	}

	return serve(cfg, opts.dryRun)
}

// serve owns the fan between AcquireOwnership and Release. Termination
// signals are caught before the acquisition and stay caught until Release
// returns; a panic in the loop still releases.
func serve(cfg config.Config, dryRun bool) int {
	logger := log.WithField("component", "main")

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sens, err := discoverFn(cfg.SensorsConfig())
	if err != nil {
		logger.Error(err)
		return exitFatal
	}
	table, err := cfg.Table()
	if err != nil {
		logger.Error(err)
		return exitFatal
	}

	var lock io.Closer
	if cfg.LockEnabled() {
		f, err := pidfile.Acquire(cfg.Pidfile)
		if err != nil {
			logger.Error(err)
			return exitFatal
		}
		lock = f
	} else {
		logger.Debug("instance lock disabled")
	}

	var act fancontrol.Actuator
	if !dryRun {
		act, err = newActuatorFn(cfg.BackendConfig())
		if err != nil {
			if lock != nil {
				_ = lock.Close()
			}
			logger.Error(err)
			return exitFatal
		}
	}
	gw := fancontrol.NewGateway(act, dryRun)

	own, err := fancontrol.AcquireOwnership(gw, lock)
	if err != nil {
		logger.Error(err)
		return exitFatal
	}
	defer func() { _ = own.Release() }()

	var (
		collector *metrics.Collector
		obs       fancontrol.Observer
		logs      *metrics.LogRing
	)
	if cfg.Metrics.Listen != "" {
		names := make([]string, len(sens))
		for i, s := range sens {
			names[i] = s.Name()
		}
		collector = metrics.New(names)
		collector.SetOwnership(own.State())
		obs = collector
		logs = metrics.NewLogRing(0)
		log.AddHook(logs)
	}

	svc := fancontrol.New(fancontrol.Config{Table: table, Interval: cfg.Control.Interval}, sens, gw, obs)
	var h http.Handler
	if cfg.Metrics.Listen != "" {
		h = metrics.Handler(collector, svc, logs)
	}
	runErr := runGroup(svc, sigCh, h, cfg.Metrics.Listen)

	relErr := own.Release()
	if collector != nil {
		collector.SetOwnership(own.State())
	}

	code := exitOK
	if runErr != nil {
		logger.Error(runErr)
		code = exitFatal
	}
	if relErr != nil {
		logger.Error(relErr)
		code = exitFatal
	}
	if code == exitOK {
		logger.Info("fand stopped")
	}
	return code
}

// runGroup runs the control loop next to the signal watcher and the optional
// metrics server. The first actor to return stops the others. sigCh is owned
// by the caller, which keeps it registered until fan control is released.
func runGroup(svc *fancontrol.Service, sigCh <-chan os.Signal, h http.Handler, listen string) error {
	var g run.Group

	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("control loop panic: %v", r)
				}
			}()
			return svc.Run(ctx)
		}, func(error) {
			cancel()
		})
	}

	{
		stop := make(chan struct{})
		g.Add(func() error {
			select {
			case sig := <-sigCh:
				log.WithField("component", "main").Infof("received %s, shutting down", sig)
				return nil
			case <-stop:
				return nil
			}
		}, func(error) {
			close(stop)
		})
	}

	if listen != "" {
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return metrics.Serve(ctx, listen, h)
		}, func(error) {
			cancel()
		})
	}

	return g.Run()
}
