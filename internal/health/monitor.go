package health

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/vietddude/sweeper/internal/core/domain"
)

const checkInterval = 10 * time.Second

// ChainProbe reaches the chain endpoint.
type ChainProbe interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// LedgerProbe reads the wallet ledger.
type LedgerProbe interface {
	Load(ctx context.Context) ([]domain.WalletRecord, error)
}

// ReportSource returns the latest finished sweep.
type ReportSource interface {
	LastReport(ctx context.Context) (*domain.SweepReport, error)
}

// Monitor aggregates health status from the chain, the ledger and recent sweeps.
type Monitor struct {
	chain      ChainProbe
	ledger     LedgerProbe
	reports    ReportSource
	staleAfter time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *Report
}

// NewMonitor creates a new health monitor. A sweep older than staleAfter
// degrades the report; zero disables that check.
func NewMonitor(chain ChainProbe, ledger LedgerProbe, reports ReportSource, staleAfter time.Duration) *Monitor {
	return &Monitor{
		chain:      chain,
		ledger:     ledger,
		reports:    reports,
		staleAfter: staleAfter,
	}
}

// CheckHealth probes every component, at most once per checkInterval.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid spamming RPC
	if m.lastReport != nil && time.Since(m.lastCheck) < checkInterval {
		return *m.lastReport
	}

	report := Report{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
		CheckedAt:    time.Now(),
	}

	// 1. Chain endpoint
	start := time.Now()
	if _, err := m.chain.ChainID(ctx); err != nil {
		report.Components["chain"] = ComponentHealth{Status: StatusCritical, Detail: err.Error()}
	} else {
		report.Components["chain"] = ComponentHealth{Status: StatusHealthy, Latency: time.Since(start)}
	}

	// 2. Ledger
	start = time.Now()
	records, err := m.ledger.Load(ctx)
	if err != nil {
		report.Components["ledger"] = ComponentHealth{Status: StatusCritical, Detail: err.Error()}
	} else {
		report.Wallets = len(records)
		report.Components["ledger"] = ComponentHealth{Status: StatusHealthy, Latency: time.Since(start)}
	}

	// 3. Last sweep
	report.Components["sweep"] = m.checkSweep(ctx, &report)

	for _, c := range report.Components {
		report.SystemStatus = worst(report.SystemStatus, c.Status)
	}

	m.lastCheck = report.CheckedAt
	m.lastReport = &report
	return report
}

func (m *Monitor) checkSweep(ctx context.Context, report *Report) ComponentHealth {
	last, err := m.reports.LastReport(ctx)
	if err != nil {
		return ComponentHealth{Status: StatusDegraded, Detail: err.Error()}
	}
	if last == nil {
		return ComponentHealth{Status: StatusHealthy, Detail: "no sweep yet"}
	}
	report.LastSweep = &last.FinishedAt

	if m.staleAfter > 0 && time.Since(last.FinishedAt) > m.staleAfter {
		return ComponentHealth{
			Status: StatusDegraded,
			Detail: fmt.Sprintf("last sweep finished %s ago", time.Since(last.FinishedAt).Round(time.Second)),
		}
	}
	if failed := last.Count(domain.SweepStatusFailed); failed > 0 {
		return ComponentHealth{
			Status: StatusDegraded,
			Detail: fmt.Sprintf("%d of %d outcomes failed", failed, len(last.Outcomes)),
		}
	}
	return ComponentHealth{Status: StatusHealthy}
}
