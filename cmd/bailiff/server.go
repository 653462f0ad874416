package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hearthmod/bailiff/moderation/audit"
	"github.com/hearthmod/bailiff/moderation/engine"
	"github.com/hearthmod/bailiff/moderation/event"
	"github.com/hearthmod/bailiff/moderation/platform/discord"
	"github.com/hearthmod/bailiff/moderation/rolestore"
	"github.com/hearthmod/bailiff/util/cliutil"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	logger     *slog.Logger
	engine     *engine.Engine
	discord    *discord.Client
	store      rolestore.RoleStore
	adminToken string
	echo       *echo.Echo
	httpd      *http.Server
	closers    []func() error
}

type Config struct {
	Logger            *slog.Logger
	DiscordToken      string
	GuildID           string
	CommandPrefix     string
	TrackedRoles      []string
	LogChannelID      string
	GreetingChannelID string
	GreetingTTL       time.Duration
	PurgeNoticeTTL    time.Duration
	LogChannelActions bool
	StoreKind         string
	DatabaseURL       string
	MaxDBConnections  int
	DBTracing         bool
	RedisURL          string
	LookupCacheTTL    time.Duration
	SlackWebhookURL   string
	DiscordRateLimit  float64
	Bind              string
	AdminToken        string
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	srv := &Server{
		logger:     logger,
		adminToken: config.AdminToken,
	}

	// holds no connection until Run; built before the store so a failure here leaves nothing open
	dc, err := discord.NewClient(discord.Config{
		Token:           config.DiscordToken,
		GuildID:         config.GuildID,
		Prefix:          config.CommandPrefix,
		DeleteRateLimit: config.DiscordRateLimit,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	discord.SetLogger(logger.With("system", "discordgo"))
	srv.discord = dc

	store, err := srv.openStore(config)
	if err != nil {
		return nil, err
	}
	if config.LookupCacheTTL > 0 {
		store = rolestore.NewCachedRoleStore(store, 10_000, config.LookupCacheTTL)
	}
	srv.store = store

	auditLog := audit.NewLogger(dc, config.LogChannelID, logger)
	if config.SlackWebhookURL != "" {
		logger.Info("configuring slack audit notifier")
		auditLog.Notifiers = append(auditLog.Notifiers, &audit.SlackNotifier{
			SlackWebhookURL: config.SlackWebhookURL,
			Client:          &http.Client{Timeout: 10 * time.Second},
		})
	}
	if config.LogChannelID == "" {
		logger.Warn("no audit log channel configured; moderation actions will not be recorded in the community")
	}

	engConfig := engine.DefaultConfig()
	engConfig.TrackedRoles = config.TrackedRoles
	engConfig.GreetingChannelID = config.GreetingChannelID
	engConfig.GreetingTTL = config.GreetingTTL
	engConfig.PurgeNoticeTTL = config.PurgeNoticeTTL
	engConfig.LogChannelActions = config.LogChannelActions
	srv.engine = engine.NewEngine(dc, store, auditLog, engConfig, logger)

	dc.Register(discord.Handlers{
		MemberJoin:  srv.engine.ProcessMemberJoin,
		MemberLeave: srv.engine.ProcessMemberLeave,
		Command: func(ctx context.Context, evt *event.CommandEvent) error {
			_, err := srv.engine.ProcessCommand(ctx, evt)
			return err
		},
		MessageDeleted: srv.engine.MessageDeleted,
	})

	srv.setupEcho(config.Bind)
	return srv, nil
}

func (srv *Server) openStore(config Config) (rolestore.RoleStore, error) {
	switch config.StoreKind {
	case "sql", "":
		db, err := cliutil.SetupDatabase(config.DatabaseURL, cliutil.DatabaseOptions{
			MaxConnections: config.MaxDBConnections,
			Tracing:        config.DBTracing,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		sqldb, err := db.DB()
		if err != nil {
			return nil, err
		}
		rs, err := rolestore.NewSQLRoleStore(db)
		if err != nil {
			sqldb.Close()
			return nil, err
		}
		srv.closers = append(srv.closers, sqldb.Close)
		return rs, nil
	case "redis":
		if config.RedisURL == "" {
			return nil, fmt.Errorf("redis store selected but no redis URL configured")
		}
		rs, err := rolestore.NewRedisRoleStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis rolestore: %w", err)
		}
		srv.closers = append(srv.closers, rs.Close)
		return rs, nil
	case "memory":
		srv.logger.Warn("using in-process tracked role store; records are lost on restart")
		return rolestore.NewMemRoleStore(), nil
	default:
		return nil, fmt.Errorf("unknown tracked role store: %q", config.StoreKind)
	}
}

func (srv *Server) setupEcho(bind string) {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(srv.logger))
	e.Use(middleware.Recover())
	e.Use(httpMetrics)
	e.Use(middleware.BodyLimit("64K"))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.HandleHealthCheck)
	if srv.adminToken != "" {
		admin := e.Group("/admin", srv.checkAdminAuth)
		admin.GET("/tracked/:member", srv.HandleTrackedLookup)
	}

	srv.echo = e
	srv.httpd = &http.Server{
		Handler:        e,
		Addr:           bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1024 * 1024,
	}
}

// Runs the gateway connection and the admin HTTP API until the context is cancelled or either fails.
func (srv *Server) Run(ctx context.Context) error {
	defer srv.close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.discord.Run(ctx)
	})
	g.Go(func() error {
		srv.logger.Info("starting admin HTTP server", "bind", srv.httpd.Addr)
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		srv.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.httpd.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (srv *Server) close() {
	if srv.engine != nil {
		srv.engine.Close()
	}
	for _, c := range srv.closers {
		if err := c(); err != nil {
			srv.logger.Warn("failed to close resource", "err", err)
		}
	}
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}
