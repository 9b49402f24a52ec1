package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/huemix/go/internal/client"
	"github.com/mcdev12/huemix/go/internal/config"
	"github.com/mcdev12/huemix/go/internal/ledger"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/roomstore"
	"github.com/mcdev12/huemix/go/internal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// The UI owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile(cfg.Client.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Client.LogFile).Msg("failed to open log file")
	}
	defer logFile.Close()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, NoColor: true})
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s store: %v\n", cfg.Backend, err)
		os.Exit(1)
	}
	defer closeStore()

	if err := run(ctx, cfg, store); err != nil {
		log.Error().Err(err).Msg("client failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, store roomstore.Store) error {
	identity := session.GuestIdentity(cfg.DisplayName)
	wallet := ledger.New(store)

	profile, err := wallet.EnsureProfile(ctx, identity.UserID, identity.DisplayName)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	log.Info().Str("user_id", identity.UserID.String()).Str("name", profile.DisplayName).Int("gold", profile.Gold).Msg("signed in")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The sink needs the program and the program's model needs the
	// controller; program is assigned before anything can send.
	var program *tea.Program
	ctrl := session.NewController(session.Config{
		Store:    store,
		Wallet:   wallet,
		Sink:     client.NewSink(func(msg tea.Msg) { program.Send(msg) }),
		Clock:    clockwork.NewRealClock(),
		Rules:    cfg.Rules,
		Retry:    cfg.Retry,
		Identity: identity,
	})
	program = tea.NewProgram(
		client.NewModel(ctx, ctrl, cfg.Client.KeyRelease),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(ctx)
	})
	g.Go(func() error {
		sub, err := wallet.Watch(ctx, identity.UserID, func(p models.Profile) {
			ctrl.SetBalance(p.Gold)
		})
		if err != nil {
			return fmt.Errorf("watch balance: %w", err)
		}
		<-ctx.Done()
		return sub.Unsubscribe()
	})
	g.Go(func() error {
		// Quitting the UI ends the session.
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (roomstore.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendNATS:
		s, err := roomstore.NewNATSStore(ctx, cfg.NATSConfig())
		if err != nil {
			return nil, nil, err
		}
		return s, closer(s), nil
	case config.BackendPostgres:
		s, err := roomstore.NewPostgresStore(ctx, roomstore.DefaultPostgresConfig(cfg.Database.DSN()))
		if err != nil {
			return nil, nil, err
		}
		return s, closer(s), nil
	case config.BackendRelay:
		s, err := roomstore.DialRelay(ctx, roomstore.DefaultRelayConfig(cfg.Relay.URL))
		if err != nil {
			return nil, nil, err
		}
		return s, closer(s), nil
	default:
		log.Warn().Msg("using in-process memory store, only one client can play")
		return roomstore.NewMemoryStore(), func() {}, nil
	}
}

func closer(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}
}
