package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/kratos/internal/config"
	"github.com/iamwavecut/kratos/internal/db"
	"github.com/iamwavecut/kratos/internal/db/sqlite"
	"github.com/iamwavecut/kratos/internal/handlers/moderation"
	"github.com/iamwavecut/kratos/internal/infra"
	"github.com/iamwavecut/kratos/internal/infrastructure/telegram"
	"github.com/iamwavecut/kratos/internal/ledger"
	"github.com/iamwavecut/kratos/internal/lifecycle"
	"github.com/iamwavecut/kratos/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log.SetFormatter(&config.KrFormatter{})
	log.SetOutput(os.Stdout)
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatalln("exiting")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownObservability, err := observability.Init(cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	workDir, err := infra.WorkDir(cfg.DotPath)
	if err != nil {
		return err
	}
	store, err := sqlite.NewSQLiteClient(ctx, workDir, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open sanction store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Error("failed to close sanction store")
		}
	}()

	enforcer, err := newEnforcer(cfg)
	if err != nil {
		return err
	}

	runtime := lifecycle.NewRuntime(
		lifecycle.Func{OnStop: shutdownObservability},
		moderation.NewReconciler(ledger.New(store), enforcer, cfg.Reconciler),
	)
	if err := runtime.Start(ctx); err != nil {
		return err
	}
	log.WithField("work_dir", workDir).Info("kratos started")

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return runtime.Stop(stopCtx)
}

func newEnforcer(cfg config.Config) (moderation.Enforcer, error) {
	if cfg.TelegramAPIToken == "" {
		log.Warn("no bot token configured, expired sanctions will only be logged")
		return dryRunEnforcer{}, nil
	}
	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return nil, fmt.Errorf("cant initialize bot api: %w", err)
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	return telegram.NewOperations(botAPI), nil
}

// dryRunEnforcer reports every lift as failed so nothing is marked
// inactive without a platform to confirm it.
type dryRunEnforcer struct{}

func (dryRunEnforcer) LiftMute(_ context.Context, guildID, subjectID db.Snowflake) error {
	log.WithFields(log.Fields{"guild_id": guildID, "subject_id": subjectID}).Info("would lift mute")
	return errDryRun
}

func (dryRunEnforcer) LiftBan(_ context.Context, guildID, subjectID db.Snowflake) error {
	log.WithFields(log.Fields{"guild_id": guildID, "subject_id": subjectID}).Info("would lift ban")
	return errDryRun
}

var errDryRun = fmt.Errorf("dry run: no enforcement backend")
