package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lkmninja/aaflbot/internal/approval"
	"github.com/lkmninja/aaflbot/internal/command"
	"github.com/lkmninja/aaflbot/internal/config"
	"github.com/lkmninja/aaflbot/internal/event"
	"github.com/lkmninja/aaflbot/internal/gateway"
	"github.com/lkmninja/aaflbot/internal/gateway/wsgate"
	"github.com/lkmninja/aaflbot/internal/logging"
	"github.com/lkmninja/aaflbot/internal/metrics"
	"github.com/lkmninja/aaflbot/internal/publish"
	"github.com/lkmninja/aaflbot/internal/ratelimit"
	"github.com/lkmninja/aaflbot/internal/rolesync"
	"github.com/lkmninja/aaflbot/internal/roster"
	"github.com/lkmninja/aaflbot/internal/signing"
	"github.com/lkmninja/aaflbot/internal/trade"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the league bot",
	Long: `Run the league bot and its websocket chat gateway.

Members connect to /ws with a token from 'aaflbot token'. Prometheus
metrics are served on metrics.path when enabled, and workflow outcomes are
published to Kafka when kafka.brokers is set. The config file is watched
and valid changes apply to workflows started afterwards.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "listen address (overrides gateway.listen_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Gateway.ListenAddr = listen
	}
	if cfg.Gateway.JWTSecret == "" {
		return fmt.Errorf("gateway.jwt_secret is not set\nSet it with 'aaflbot config set' or AAFLBOT_GATEWAY_JWT_SECRET")
	}

	rotation := logging.DefaultRotationConfig()
	rotation.MaxSizeMB = cfg.Logging.MaxSizeMB
	rotation.MaxBackups = cfg.Logging.MaxBackups
	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level, rotation)
	if err != nil {
		return err
	}
	defer logger.Close()

	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	srv.live.Watch(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Gateway.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Gateway.ListenAddr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "aaflbot listening on %s\n", ln.Addr())
	return srv.serve(ctx, ln)
}

// server is the wired bot: one hub, one roster and the workflows around
// them, exposed over HTTP.
type server struct {
	live   *config.Live
	logger *logging.Logger
	bus    *event.Bus

	store     *roster.Store
	hub       *gateway.Hub
	router    *command.Router
	limiter   ratelimit.Limiter
	syncer    *rolesync.Syncer
	publisher *publish.Publisher
	metrics   *metrics.Metrics
	ws        *wsgate.Server

	handler http.Handler
}

func newServer(cfg *config.Config, logger *logging.Logger) (*server, error) {
	s := &server{
		live:   config.NewLive(cfg),
		logger: logger,
		bus:    event.NewBus(logger),
	}

	hub, err := gateway.NewHub(gateway.Member{ID: cfg.Gateway.BotID, Name: cfg.Gateway.BotName}, gateway.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	s.hub = hub

	s.store = roster.NewStore(cfg.League.DefaultRosterCap, roster.WithBus(s.bus), roster.WithLogger(logger))
	s.live.OnSwap(func(c *config.Config) { s.store.SetDefaultCap(c.League.DefaultRosterCap) })

	coord := approval.NewCoordinator(hub, s.bus, logger)
	trades := trade.NewEngine(s.store, hub, coord,
		trade.WithBus(s.bus),
		trade.WithLogger(logger),
		trade.WithSettings(s.tradeSettings),
	)
	signings := signing.NewFlow(s.store, hub, coord,
		signing.WithBus(s.bus),
		signing.WithLogger(logger),
		signing.WithConsentTimeout(func() time.Duration { return s.live.Get().Signing.ConsentTimeout() }),
	)

	s.limiter, err = ratelimit.New(cfg.RateLimit, logger)
	if err != nil {
		return nil, err
	}

	s.router = command.NewRouter(command.Deps{
		Gateway:     hub,
		Store:       s.store,
		Trades:      trades,
		Signings:    signings,
		Coordinator: coord,
		Limiter:     s.limiter,
		Config:      s.live.Get,
		Bus:         s.bus,
		Logger:      logger,
	})

	if cfg.RoleSync.Enabled {
		s.syncer = rolesync.New(s.store, hub,
			func() time.Duration { return s.live.Get().RoleSync.Interval() },
			logger,
			rolesync.WithExempt(s.router.IsAdmin),
		)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		w, err := publish.NewKafkaWriter(cfg.Kafka)
		if err != nil {
			_ = s.limiter.Close()
			return nil, err
		}
		s.publisher = publish.New(w, logger)
		s.publisher.Attach(s.bus)
	}

	mux := http.NewServeMux()
	if cfg.Metrics.Enabled {
		s.metrics, err = metrics.New(prometheus.NewRegistry())
		if err != nil {
			_ = s.limiter.Close()
			return nil, err
		}
		s.metrics.Attach(s.bus)
		mux.Handle(cfg.Metrics.Path, s.metrics.Handler())
	}

	s.ws = wsgate.NewServer(hub, cfg.Gateway.JWTSecret, cfg.Gateway.AllowedOrigins, logger)
	mux.Handle("/ws", s.ws)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	s.handler = mux

	return s, nil
}

func (s *server) tradeSettings() trade.Settings {
	c := s.live.Get().Trade
	return trade.Settings{
		GroupTimeout:        c.GroupTimeout(),
		ConsentTimeout:      c.ConsentTimeout(),
		VoteWindow:          c.VoteWindow(),
		RevalidateCaptaincy: c.RevalidateCaptaincy,
	}
}

// serve runs the bot on ln until ctx is done, then shuts down: the HTTP
// server and websocket connections first, then in-flight commands, then
// the publisher's remaining records.
func (s *server) serve(ctx context.Context, ln net.Listener) error {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.hub.OnMessage(s.router.Listener(workCtx))

	var wg sync.WaitGroup
	if s.syncer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.syncer.Run(workCtx)
		}()
	}
	if s.publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.publisher.Run(workCtx)
		}()
	}

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()
	s.logger.Info("server started", "addr", ln.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	s.logger.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", "error", err)
	}
	s.ws.Close()

	cancel()
	s.router.Wait()
	wg.Wait()

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("failed to close publisher", "error", err)
		}
		published, dropped := s.publisher.Stats()
		s.logger.Info("publisher stopped", "published", published, "dropped", dropped)
	}
	if err := s.limiter.Close(); err != nil {
		s.logger.Warn("failed to close rate limiter", "error", err)
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}
