// Command overseerd runs a single supervised command line under a
// configurable [min, max] pool, optionally reporting Prometheus metrics
// and integrating with systemd's sd_notify protocol.
package main

import (
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gappylul/overseer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		command         string
		min, max        int
		shutdownGrace   time.Duration
		forceKillSignal string
		metricsAddr     string
		systemdNotify   bool
		configWatch     string
	)

	cmd := &cobra.Command{
		Use:   "overseerd",
		Short: "Run a pooled command under supervision",
		RunE: func(_ *cobra.Command, _ []string) error {
			if command == "" {
				return fmt.Errorf("--command is required")
			}

			opts := []overseer.Option{
				overseer.WithCommand(command),
				overseer.WithScaleLimits(min, max),
				overseer.WithShutdownGrace(shutdownGrace),
				overseer.WithForceKillSignal(signalByName(forceKillSignal)),
			}

			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				opts = append(opts, overseer.WithMetrics(reg))
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				srv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						fmt.Fprintf(os.Stderr, "overseerd: metrics server: %v\n", err)
					}
				}()
			}

			if systemdNotify {
				opts = append(opts, overseer.WithSystemdNotify())
			}
			if configWatch != "" {
				opts = append(opts, overseer.WithConfigWatch(configWatch))
			}

			sup := overseer.New(opts...)
			return sup.Run()
		},
	}

	cmd.Flags().StringVar(&command, "command", "", "shell command line to run under supervision")
	cmd.Flags().IntVar(&min, "min", 1, "minimum pool size")
	cmd.Flags().IntVar(&max, "max", 1, "maximum pool size")
	cmd.Flags().DurationVar(&shutdownGrace, "shutdown-grace", 5*time.Second, "grace period before force-kill on shutdown")
	cmd.Flags().StringVar(&forceKillSignal, "force-kill-signal", "SIGKILL", "signal to escalate to after the shutdown grace period (SIGKILL or SIGTERM)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")
	cmd.Flags().BoolVar(&systemdNotify, "systemd-notify", false, "enable sd_notify readiness and watchdog integration")
	cmd.Flags().StringVar(&configWatch, "config-watch", "", "path to watch for changes; triggers a reload signal to children")

	return cmd
}

// signalByName maps a small allowlist of signal names accepted by
// --force-kill-signal; anything unrecognized falls back to SIGKILL
// rather than erroring, since it is an escalation-of-last-resort knob.
func signalByName(name string) syscall.Signal {
	switch name {
	case "SIGKILL":
		return syscall.SIGKILL
	case "SIGTERM":
		return syscall.SIGTERM
	default:
		return syscall.SIGKILL
	}
}
