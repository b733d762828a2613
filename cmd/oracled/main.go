// oracled runs the volatility oracle daemon: it consumes the price feed,
// commits one observation per instrument per period and exports the rolling
// annualized volatility over Prometheus.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"vol-oracle-go/config"
	"vol-oracle-go/feed"
	"vol-oracle-go/infrastructure/alert"
	"vol-oracle-go/infrastructure/logger"
	"vol-oracle-go/metrics"
	"vol-oracle-go/oracle"
)

type allowlist map[string]bool

func (a allowlist) Authorize(caller string) bool { return a[caller] }

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "config file path")
	metricsAddr := flag.String("metricsAddr", "", "metrics listen address, overrides config")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Close()

	mset := metrics.New(metrics.DefaultConfig())
	addr := cfg.Metrics.Addr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		mset.Serve(addr)
	}

	instruments := make([]string, 0, len(cfg.Instruments))
	for name := range cfg.Instruments {
		instruments = append(instruments, name)
	}
	sort.Strings(instruments)

	cache := feed.NewStatic()
	stream := feed.NewStream(cfg.Feed.URL, instruments, cache, logg)
	stream.SetRecorder(mset)

	o, err := oracle.New(oracle.Config{
		Period:              cfg.Oracle.PeriodSeconds,
		CommitPhaseDuration: cfg.Oracle.CommitPhaseSeconds,
		WindowSize:          cfg.Oracle.WindowSize,
	}, cache)
	if err != nil {
		log.Fatalf("init oracle: %v", err)
	}
	o.SetRecorder(mset)
	o.SetEventSink(logg.LogOracle)

	admins := make(allowlist, len(cfg.AdminCallers))
	for _, caller := range cfg.AdminCallers {
		admins[caller] = true
	}
	o.SetAuthorizer(admins)

	for _, name := range instruments {
		if err := o.Initialize(name); err != nil {
			log.Fatalf("initialize %s: %v", name, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
			logg.LogError(err, map[string]interface{}{"component": "feed"})
		}
	}()

	// Only the commit phase is hot-reloadable; everything else needs a
	// restart.
	watcher := &config.Watcher{Path: *cfgPath}
	go func() {
		_ = watcher.Start(ctx, func(next config.AppConfig) {
			if next.Oracle.CommitPhaseSeconds != cfg.Oracle.CommitPhaseSeconds {
				if err := o.SetCommitPhaseDuration(next.Oracle.CommitPhaseSeconds); err != nil {
					logg.LogError(err, map[string]interface{}{"component": "config"})
					return
				}
				cfg.Oracle.CommitPhaseSeconds = next.Oracle.CommitPhaseSeconds
				logg.Info("commit phase updated from config")
				return
			}
			logg.Warn("config file changed on disk, restart to apply")
		})
	}()

	go runScheduler(ctx, o, instruments, logg)

	alerts := alert.NewManager([]alert.Channel{alert.NewLogChannel("log", logg)}, 5*time.Minute)
	health := oracle.NewHealthChecker(o, instruments, alerts)
	go health.Run(ctx, time.Minute)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			ticker := time.NewTicker(interval / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		}()
	}

	logg.Info("oracled started")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	logg.Info("oracled stopping")
	cancel()
}

// runScheduler drives commit attempts once a second. Off-phase and
// already-committed rejections are the steady state between boundaries and
// stay at debug level.
func runScheduler(ctx context.Context, o *oracle.Oracle, instruments []string, logg *logger.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range instruments {
				err := o.Commit(name, "oracled")
				switch {
				case err == nil:
				case oracle.IsExpectedCommitSkip(err):
					logg.Debug("commit skipped: " + name)
				default:
					logg.LogError(err, map[string]interface{}{
						"component":  "scheduler",
						"instrument": name,
					})
				}
			}
		}
	}
}
