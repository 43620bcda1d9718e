package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/sweeper/internal/api"
	"github.com/vietddude/sweeper/internal/core/config"
	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/core/worker"
	"github.com/vietddude/sweeper/internal/custody/keyvault"
	"github.com/vietddude/sweeper/internal/custody/wallet"
	"github.com/vietddude/sweeper/internal/health"
	"github.com/vietddude/sweeper/internal/infra/chain"
	"github.com/vietddude/sweeper/internal/infra/chain/evm"
	"github.com/vietddude/sweeper/internal/infra/events"
	redisclient "github.com/vietddude/sweeper/internal/infra/redis"
	"github.com/vietddude/sweeper/internal/infra/rpc"
	"github.com/vietddude/sweeper/internal/infra/storage"
	"github.com/vietddude/sweeper/internal/infra/storage/postgres"
	"github.com/vietddude/sweeper/internal/sweep/executor"
	"github.com/vietddude/sweeper/internal/sweep/oracle"
	"github.com/vietddude/sweeper/internal/sweep/orchestrator"
)

// App owns every long-lived component of the sweeper.
type App struct {
	cfg       *config.AppConfig
	ledger    storage.WalletLedger
	chain     chain.Client
	wallets   *wallet.Manager
	sweeper   *orchestrator.Orchestrator
	api       *api.Server
	scheduler *worker.Scheduler
	monitor   *health.Monitor
	reports   ReportStore
	publisher events.Publisher
	db        *postgres.DB
	redis     *redisclient.Client
	log       *slog.Logger

	last   atomic.Pointer[domain.SweepReport]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Deps are the external collaborators of an App. Locker, Reports and
// Publisher are optional.
type Deps struct {
	Chain     chain.Client
	Ledger    storage.WalletLedger
	Locker    orchestrator.Locker
	Reports   ReportStore
	Publisher events.Publisher
}

// New validates cfg, connects to every configured backend and assembles the App.
func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ledger, db, err := OpenLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := evm.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	deps := Deps{Chain: client, Ledger: ledger}

	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, using in-process sweep lock", "error", err)
		} else {
			deps.Locker = redisClient
			deps.Reports = redisClient
		}
	}

	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS)
		if err != nil {
			slog.Warn("Failed to connect to NATS, events disabled", "error", err)
		} else {
			deps.Publisher = pub
		}
	}

	app, err := Assemble(ctx, cfg, deps)
	if err != nil {
		if deps.Publisher != nil {
			deps.Publisher.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		client.Close()
		_ = ledger.Close()
		return nil, err
	}
	app.db = db
	app.redis = redisClient
	return app, nil
}

// Assemble wires the sweep pipeline on top of already connected collaborators.
// The chain endpoint must report the configured chain id.
func Assemble(ctx context.Context, cfg *config.AppConfig, deps Deps) (*App, error) {
	vault, err := keyvault.New(cfg.Custody.EncryptionSecret)
	if err != nil {
		return nil, err
	}

	retry := rpc.RetryConfig{
		MaxAttempts: cfg.Sweep.MaxRetries,
		Delay:       cfg.Sweep.RetryDelay,
		CallTimeout: cfg.Chain.CallTimeout,
	}

	chainID, err := rpc.Do(ctx, retry, "chain_id", deps.Chain.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if chainID.Int64() != cfg.Chain.ChainID {
		return nil, fmt.Errorf("%w: endpoint chain id %s does not match configured %d",
			domain.ErrConfig, chainID, cfg.Chain.ChainID)
	}

	buffer, err := cfg.NativeBufferWei()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	gasPrice, err := cfg.GasPriceWei()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	fundingAmount, err := cfg.FundingWei()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	masterKey, err := cfg.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	hotWallet := common.HexToAddress(cfg.Sweep.HotWallet)
	token := common.HexToAddress(cfg.Sweep.TokenAddress)

	exec := executor.New(deps.Chain, executor.Config{
		HotWallet:      hotWallet,
		Token:          token,
		ChainID:        chainID,
		GasLimit:       cfg.Sweep.GasLimit,
		TokenGasLimit:  cfg.Sweep.TokenGasLimit,
		ConfirmTimeout: cfg.Chain.ConfirmTimeout,
		Retry:          retry,
	})

	pub := deps.Publisher
	if pub == nil {
		pub = events.Noop{}
	}

	app := &App{
		cfg:       cfg,
		ledger:    deps.Ledger,
		chain:     deps.Chain,
		reports:   deps.Reports,
		publisher: pub,
		log:       slog.Default().With("component", "app"),
	}

	if masterKey == nil {
		app.log.Warn("No master wallet key configured, new wallets will not be funded")
	}
	app.wallets = wallet.NewManager(deps.Ledger, vault, wallet.Funding{
		Funder:    exec,
		MasterKey: masterKey,
		Amount:    fundingAmount,
		GasPrice:  gasPrice,
	}, pub)

	opts := []orchestrator.Option{
		orchestrator.WithReportHook(app.remember),
		orchestrator.WithReportHook(app.publish),
	}
	if deps.Locker != nil {
		opts = append(opts, orchestrator.WithLocker(deps.Locker))
	}
	if deps.Reports != nil {
		opts = append(opts, orchestrator.WithReportHook(app.store))
	}

	app.sweeper = orchestrator.New(
		deps.Ledger,
		vault,
		oracle.New(deps.Chain, retry),
		exec,
		orchestrator.Config{
			Token:            token,
			NativeBuffer:     buffer,
			GasPrice:         gasPrice,
			GasLimit:         cfg.Sweep.GasLimit,
			TokenGasLimit:    cfg.Sweep.TokenGasLimit,
			Concurrency:      cfg.Sweep.Concurrency,
			RereadAfterToken: !cfg.Sweep.SingleSnapshot,
		},
		opts...,
	)

	app.monitor = health.NewMonitor(deps.Chain, deps.Ledger, app, 3*cfg.Sweep.Interval)
	app.api = api.NewServer(app.wallets, app, api.Config{
		Port:      cfg.Server.Port,
		JWTSecret: cfg.API.JWTSecret,
		Issuer:    cfg.API.Issuer,
		Health:    app.monitor,
	})
	app.scheduler = worker.NewScheduler("sweep", cfg.Sweep.Interval, func(ctx context.Context) error {
		_, err := app.TriggerSweep(ctx)
		return err
	})

	return app, nil
}

// Wallets returns the wallet manager.
func (a *App) Wallets() *wallet.Manager {
	return a.wallets
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// TriggerSweep runs one sweep over every custodial wallet.
func (a *App) TriggerSweep(ctx context.Context) (domain.SweepReport, error) {
	return a.sweeper.Run(ctx)
}

// LastReport returns the latest finished report, preferring the shared store.
func (a *App) LastReport(ctx context.Context) (*domain.SweepReport, error) {
	if a.reports != nil {
		report, err := a.reports.LastReport(ctx)
		if err != nil {
			a.log.Warn("Failed to read last report from store", "error", err)
		} else if report != nil {
			return report, nil
		}
	}
	return a.last.Load(), nil
}

func (a *App) remember(_ context.Context, report domain.SweepReport) {
	a.last.Store(&report)
}

func (a *App) store(ctx context.Context, report domain.SweepReport) {
	if err := a.reports.SaveReport(ctx, report); err != nil {
		a.log.Warn("Failed to store sweep report", "run", report.RunID, "error", err)
	}
}

func (a *App) publish(ctx context.Context, report domain.SweepReport) {
	if err := a.publisher.SweepCompleted(ctx, report); err != nil {
		a.log.Warn("Failed to publish sweep report", "run", report.RunID, "error", err)
	}
}

// Start starts the HTTP API and the sweep scheduler. It does not block.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	go func() {
		if err := a.api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("API server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.scheduler.Start(ctx)
	}()

	return nil
}

// Stop shuts the API down, waits for the scheduler and releases connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping sweeper...")

	if a.cancel != nil {
		a.cancel()
	}
	err := a.api.Stop(ctx)
	a.wg.Wait()

	a.Close()
	return err
}

// Close releases connections without touching the API server.
func (a *App) Close() {
	a.publisher.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	a.chain.Close()
	if err := a.ledger.Close(); err != nil {
		a.log.Warn("Failed to close ledger", "error", err)
	}
}
