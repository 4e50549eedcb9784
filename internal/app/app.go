package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/ykvlv/taskmate-bot/internal/config"
	"github.com/ykvlv/taskmate-bot/internal/conversation"
	"github.com/ykvlv/taskmate-bot/internal/httpapi"
	"github.com/ykvlv/taskmate-bot/internal/scheduler"
	"github.com/ykvlv/taskmate-bot/internal/store"
	"github.com/ykvlv/taskmate-bot/internal/tasks"
	"github.com/ykvlv/taskmate-bot/internal/telegram"
	"github.com/ykvlv/taskmate-bot/internal/texts"
	"github.com/ykvlv/taskmate-bot/internal/transcribe"
)

// Sweep kinds accepted by App.Sweep.
const (
	SweepReminders = "reminders"
	SweepDigest    = "digest"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	repo    store.Repo
	bot     *tgbotapi.BotAPI
	router  *telegram.Router
	sched   *scheduler.Scheduler
	httpSrv *http.Server
}

// OpenStore opens the configured store and applies migrations.
func OpenStore(ctx context.Context, cfg config.Config) (store.Repo, error) {
	if cfg.DBDriver == config.DriverPostgres {
		repo, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	repo, err := store.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// New opens the store, authorizes the bot and wires all components.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.RequireBotToken(); err != nil {
		return nil, err
	}

	repo, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("store ready", zap.String("driver", cfg.DBDriver))

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	bot.Debug = false

	catalog, err := texts.New(log.Named("texts"))
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	var stt telegram.Transcriber
	if cfg.TranscribeEnabled() {
		stt = transcribe.New(transcribe.Options{
			Endpoint: cfg.TranscribeURL,
			APIKey:   cfg.TranscribeAPIKey,
			Model:    cfg.TranscribeModel,
			Timeout:  cfg.TranscribeTimeout,
		})
	}

	clk := clock.New()
	notifier := telegram.NewNotifier(bot, log.Named("telegram"))
	conv := conversation.NewHandler(repo, tasks.NewService(repo, clk), notifier, catalog, clk,
		log.Named("conversation"), conversation.Options{
			DefaultTZ: cfg.DefaultTZ,
			Policy:    cfg.Policy(),
		})
	router := telegram.NewRouter(bot, log.Named("telegram"), conv, stt, catalog)

	sched := scheduler.New(repo, log.Named("scheduler"), notifier, catalog, clk, scheduler.Options{
		Interval:   cfg.SchedulerInterval,
		PreWindow:  cfg.PreReminderWindow,
		DigestHour: cfg.DigestHour,
	})

	api := httpapi.NewRouter(httpapi.NewHandler(repo, sched, log.Named("http")), log.Named("http"), cfg.SweepToken)

	return &App{
		cfg:     cfg,
		log:     log,
		repo:    repo,
		bot:     bot,
		router:  router,
		sched:   sched,
		httpSrv: httpapi.NewServer(cfg.HTTPAddr, api),
	}, nil
}

// Run polls Telegram, runs the scheduler and serves HTTP until a signal
// arrives or ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	a.log.Info("starting taskmate-bot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("http", a.cfg.HTTPAddr),
		zap.Duration("interval", a.cfg.SchedulerInterval),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sched.Run(ctx)
	}()

	a.router.Run(ctx)
	a.log.Info("shutdown signal received")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}

	wg.Wait()
	return nil
}

// Sweep runs one sweep of the given kind and returns its stats.
func (a *App) Sweep(ctx context.Context, kind string) (scheduler.SweepStats, error) {
	switch kind {
	case SweepReminders:
		return a.sched.RunReminderSweep(ctx)
	case SweepDigest:
		return a.sched.RunDigestSweep(ctx)
	default:
		return scheduler.SweepStats{}, errors.New("unknown sweep kind: " + kind)
	}
}

// Close releases the store.
func (a *App) Close() {
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.log.Warn("store close error", zap.Error(err))
		}
		a.repo = nil
	}
}
