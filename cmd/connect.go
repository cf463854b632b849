// connect.go implements the connect command: it establishes the connection,
// hands it to the recovery manager and keeps running until a signal arrives.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vedfolnir/wsbridge/internal/config"
	"github.com/vedfolnir/wsbridge/internal/logger"
	"github.com/vedfolnir/wsbridge/internal/metrics"
	"github.com/vedfolnir/wsbridge/internal/netmon"
	"github.com/vedfolnir/wsbridge/internal/recovery"
	"github.com/vedfolnir/wsbridge/internal/transport"
)

var (
	// connect command flags.
	serverURL string
	token     string
)

// statusWriteInterval is how often the status file is refreshed while the
// bridge runs.
const statusWriteInterval = 5 * time.Second

// connectCmd connects to the server and supervises the connection.
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the Vedfolnir server",
	Long: `Connects to the Vedfolnir server over WebSocket and keeps the
connection alive.

Dropped connections are classified and retried with jittered exponential
backoff. When the WebSocket transport itself fails (CORS, proxies), the
bridge falls back to HTTP long-polling and restores WebSocket once a
connection succeeds. Host suspension (laptop sleep) is detected and triggers
an immediate degraded-mode reconnect on wake.

SIGINT (Ctrl+C) or SIGTERM shuts the bridge down cleanly.`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVar(&serverURL, "server", "",
		"server URL (overrides the config file)")
	connectCmd.Flags().StringVar(&token, "token", "",
		"session token (overrides auth.token_env and auth.token_file)")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	authToken := token
	if authToken == "" {
		authToken = cfg.Token()
	}

	target, err := buildServerURL(cfg.Server.URL, authToken)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Transport client.
	socket := transport.NewSocket(target,
		transport.WithAllowedTransports(cfg.AllowedTransports()),
		transport.WithHeartbeat(cfg.HeartbeatInterval(), 2*cfg.HeartbeatInterval()),
	)
	socket.SetDialTimeout(cfg.DialTimeout())

	// Recovery manager supervising the client.
	mgr := recovery.New(socket, cfg.ToRecoveryConfig())
	defer mgr.Destroy()

	// Metrics, fed from recovery events and raw connect errors.
	met := metrics.New()
	unsubEvents := mgr.Subscribe(met.Observe)
	defer unsubEvents()
	removeErr := socket.OnConnectError(func(err error) {
		met.RecordError(recovery.Classify(err))
	})
	defer removeErr()

	// Server traffic counts as liveness for the suspension detector.
	removeMsg := socket.OnMessage(func(msg transport.Message) {
		met.MessagesReceived.Add(1)
		mgr.NotifyActivity()
	})
	defer removeMsg()

	unsubLog := mgr.Subscribe(func(ev recovery.Event) {
		logger.Debug().
			Str("event", string(ev.Type)).
			Str("event_id", ev.ID).
			Msg("recovery event")
	})
	defer unsubLog()

	// Network interface monitoring pauses and resumes recovery.
	monitor := netmon.New(socket, mgr, 0)
	monitor.Start(ctx)

	// Optional Prometheus endpoint.
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = startMetricsServer(cfg.Metrics.Listen, met, mgr)
		defer shutdownMetricsServer(metricsSrv)
	}

	startTime := time.Now()
	writeStatus(cfg.Server.URL, startTime, mgr, met)

	logger.Info().
		Str("server", cfg.Server.URL).
		Str("transports", fmt.Sprintf("%v", cfg.AllowedTransports())).
		Msg("connecting")
	socket.Connect()

	ticker := time.NewTicker(statusWriteInterval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			mgr.Destroy()
			socket.Disconnect()
			if err := ClearStatus(); err != nil {
				logger.Warn().Err(err).Msg("failed to remove status file")
			}
			return nil
		case <-ticker.C:
			writeStatus(cfg.Server.URL, startTime, mgr, met)
		}
	}
}

// buildServerURL validates the server URL and attaches the session token as
// a query parameter when present.
func buildServerURL(raw, authToken string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("server URL must use ws:// or wss://, got %q", u.Scheme)
	}

	if authToken != "" {
		q := u.Query()
		q.Set("token", authToken)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// writeStatus refreshes the status file with the current snapshots.
func writeStatus(server string, startTime time.Time, mgr *recovery.Manager, met *metrics.Metrics) {
	stats := mgr.GetStats()
	info := &StatusInfo{
		ServerURL: server,
		StartTime: &startTime,
		PID:       os.Getpid(),
		State:     stats.State,
		Counters:  met.Snapshot(),
	}
	if err := SaveStatus(info); err != nil {
		logger.Debug().Err(err).Msg("failed to write status file")
	}
}

// startMetricsServer serves /metrics (Prometheus), /status (JSON) and
// /healthz.
func startMetricsServer(listen string, met *metrics.Metrics, mgr *recovery.Manager) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if mgr.GetStats().State.Connected {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "disconnected")
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			State    recovery.Snapshot `json:"state"`
			Counters metrics.Snapshot  `json:"counters"`
		}{
			State:    mgr.GetStats().State,
			Counters: met.Snapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Debug().Err(err).Msg("failed to encode status response")
		}
	})

	srv := &http.Server{Addr: listen, Handler: mux}
	go func() {
		logger.Info().Str("listen", listen).Msg("metrics endpoint started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("metrics endpoint shutdown failed")
	}
}
