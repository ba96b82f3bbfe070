package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/pflag"
	"github.com/tejzpr/filerequest-bot/internal/config"
	"github.com/tejzpr/filerequest-bot/internal/db"
	"github.com/tejzpr/filerequest-bot/internal/gateway"
	"github.com/tejzpr/filerequest-bot/internal/handler"
	"github.com/tejzpr/filerequest-bot/internal/request"
	"github.com/tejzpr/filerequest-bot/internal/webserver"
)

func main() {
	flags := config.BindFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := flags.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	// stdout belongs to the MCP transport
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(cfg, logger); err != nil {
		logger.Error("filerequest-bot.exit", "error", err)
		os.Exit(1)
	}
}

func openStore(cfg config.Config) (request.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		d, err := db.Open(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return db.NewStore(d), nil
	default:
		return request.NewMemoryStore(), nil
	}
}

func idGenerator(cfg config.Config) request.IDGenerator {
	if cfg.IDs.Scheme == config.SchemeUUID {
		return request.UUIDGenerator{}
	}
	return request.NewSequenceGenerator()
}

func run(cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	engine := request.NewEngine(store, request.WithIDGenerator(idGenerator(cfg)))

	broker := webserver.NewBroker()
	gw := gateway.New(engine,
		gateway.WithNotifier(broker),
		gateway.WithLogger(logger),
		gateway.WithBotName(cfg.Bot.Name),
	)

	web := webserver.New(webserver.Config{
		Addr:     cfg.Listen,
		Events:   gw,
		Requests: engine,
		Rooms:    store,
		Broker:   broker,
		Logger:   logger,
	})
	primary, err := web.Start()
	if err != nil {
		return fmt.Errorf("failed to start web server: %w", err)
	}

	// A secondary instance keeps no state and forwards to the primary.
	var events handler.EventHandler = gw
	if !primary {
		events = webserver.NewClient(webserver.BaseURL(cfg.Listen))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Transport == config.TransportMCP {
		s := server.NewMCPServer(
			"filerequest-bot",
			"1.0.0",
			server.WithToolCapabilities(false),
		)
		handler.New(events).Register(s)

		go func() {
			if err := server.ServeStdio(s); err != nil {
				logger.Error("mcp.serve", "error", err)
			}
			stop()
		}()
	} else if !primary {
		return fmt.Errorf("http transport needs to own %s, but another instance is serving it", cfg.Listen)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return web.Shutdown(shutdownCtx)
}
