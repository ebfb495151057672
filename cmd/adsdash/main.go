// Command adsdash serves the Meta ads automation dashboard backend.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikeeai/adsdash/pkg/api"
	"github.com/mikeeai/adsdash/pkg/chat"
	"github.com/mikeeai/adsdash/pkg/compose"
	"github.com/mikeeai/adsdash/pkg/config"
	"github.com/mikeeai/adsdash/pkg/execrunner"
	"github.com/mikeeai/adsdash/pkg/hub"
	"github.com/mikeeai/adsdash/pkg/model"
	"github.com/mikeeai/adsdash/pkg/settings"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	bind := flag.String("bind", "", "listen address override")
	flag.Parse()

	logger := log.New(os.Stdout, "[adsdash] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := execrunner.NewCommandRunner(cfg.Compose.ProjectDir, cfg.Compose.CommandTimeout)
	fleet := compose.NewServiceCLI(runner)
	h := hub.NewHub()
	store := settings.NewStore(cfg.Settings.Path)

	client := model.NewClient(cfg.Chat.CompletionsURL)
	dispatcher := chat.NewDispatcher(cfg.Chat.ServiceEndpoints, fleet)
	engine := chat.NewEngine(client, fleet, dispatcher, cfg.Chat.DefaultModel, logger)

	server := api.NewServer(cfg.Server, fleet, h, store, engine, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("server error: %v", err)
	}
	logger.Println("shutdown complete")
}
