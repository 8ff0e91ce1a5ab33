package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/marksync/internal/client"
	"github.com/MrSnakeDoc/marksync/internal/feed"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/session"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
	"github.com/MrSnakeDoc/marksync/internal/undo"
	"github.com/MrSnakeDoc/marksync/internal/version"
	"github.com/MrSnakeDoc/marksync/internal/watch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		serverURL        string
		token            string
		handshakeTimeout time.Duration
		undoWindow       time.Duration
		logLevel         string
		live             bool
		showVersion      bool
	)

	flagSet := pflag.NewFlagSet("marksync-watch", pflag.ContinueOnError)
	flagSet.StringVarP(&serverURL, "server", "s", envOr("MARKSYNC_SERVER", "http://localhost:8080"), "marksync server URL (env MARKSYNC_SERVER)")
	flagSet.StringVarP(&token, "token", "t", os.Getenv("MARKSYNC_TOKEN"), "bearer token for the signed-in identity (env MARKSYNC_TOKEN)")
	flagSet.DurationVar(&handshakeTimeout, "handshake-timeout", client.DefaultHandshakeTimeout, "websocket handshake timeout")
	flagSet.DurationVar(&undoWindow, "undo-window", undo.DefaultWindow, "how long a delete can be undone")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&live, "live", true, "re-render the list when it changes")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println(version.String("marksync-watch"))
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	log := logger.New(logLevel, true)
	defer func() { _ = log.Sync() }()

	provider, err := session.NewStaticProvider(token)
	if err != nil {
		return fmt.Errorf("cannot read token: %w", err)
	}
	identity, err := provider.Current(context.Background())
	if err != nil {
		return fmt.Errorf("no session: set --token or MARKSYNC_TOKEN: %w", err)
	}

	api, err := client.New(serverURL, identity.Token, nil)
	if err != nil {
		return err
	}
	changes, err := client.NewFeed(serverURL, identity.Token, handshakeTimeout, feed.DefaultBuffer, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hook := syncer.New(api, changes, log)
	defer hook.Close()

	// Failures surface through the console
	if err := hook.Initialize(ctx, identity.UserID); err != nil {
		log.Debug("initial load incomplete", logger.Error(err))
	}

	console := watch.New(hook, undo.NewManager(undoWindow), os.Stdout, watch.Options{
		Live:   live,
		Logout: api.Logout,
	})

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return console.Run(gctx, os.Stdin)
	})
	g.Go(func() error {
		<-gctx.Done()
		hook.Close()
		return nil
	})
	return g.Wait()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
