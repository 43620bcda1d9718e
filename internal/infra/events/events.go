// Package events publishes wallet and sweep notifications over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/sweep/metrics"
)

const (
	SubjectWalletCreated  = "wallet.created"
	SubjectSweepCompleted = "sweep.completed"
)

// Publisher announces domain events. Publishing is best effort.
type Publisher interface {
	WalletCreated(ctx context.Context, wallet domain.WalletView) error
	SweepCompleted(ctx context.Context, report domain.SweepReport) error
	Close()
}

// Config holds NATS connection configuration.
type Config struct {
	URL           string        `yaml:"url" env:"NATS_URL"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	Timeout       time.Duration `yaml:"timeout"`
}

// SweepSummary is the payload of a sweep.completed event.
type SweepSummary struct {
	RunID      string                `json:"runId"`
	FinishedAt time.Time             `json:"finishedAt"`
	Wallets    int                   `json:"wallets"`
	Swept      int                   `json:"swept"`
	Skipped    int                   `json:"skipped"`
	Failed     int                   `json:"failed"`
	Outcomes   []domain.SweepOutcome `json:"outcomes"`
}

func Summarize(r domain.SweepReport) SweepSummary {
	return SweepSummary{
		RunID:      r.RunID,
		FinishedAt: r.FinishedAt,
		Wallets:    r.Wallets,
		Swept:      r.Count(domain.SweepStatusSwept),
		Skipped:    r.Count(domain.SweepStatusSkipped),
		Failed:     r.Count(domain.SweepStatusFailed),
		Outcomes:   r.Outcomes,
	}
}

type publishConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes JSON events on core NATS subjects.
type NATSPublisher struct {
	conn   publishConn
	prefix string
	log    *slog.Logger
}

// Connect dials NATS with reconnects enabled.
func Connect(cfg Config) (*NATSPublisher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := slog.Default().With("component", "events")

	conn, err := nats.Connect(cfg.URL,
		nats.Name("sweeper"),
		nats.Timeout(timeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)
	return newPublisher(conn, cfg.SubjectPrefix), nil
}

func newPublisher(conn publishConn, prefix string) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		log:    slog.Default().With("component", "events"),
	}
}

func (p *NATSPublisher) subject(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

func (p *NATSPublisher) WalletCreated(ctx context.Context, wallet domain.WalletView) error {
	return p.publish(ctx, SubjectWalletCreated, wallet)
}

func (p *NATSPublisher) SweepCompleted(ctx context.Context, report domain.SweepReport) error {
	return p.publish(ctx, SubjectSweepCompleted, Summarize(report))
}

func (p *NATSPublisher) publish(ctx context.Context, name string, payload any) error {
	subject := p.subject(name)
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("flush %s: %w", subject, err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(subject, "ok").Inc()
	p.log.Debug("event published", "subject", subject, "bytes", len(data))
	return nil
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
	metrics.NATSConnectionStatus.Set(0)
}

// Noop discards every event.
type Noop struct{}

func (Noop) WalletCreated(context.Context, domain.WalletView) error   { return nil }
func (Noop) SweepCompleted(context.Context, domain.SweepReport) error { return nil }
func (Noop) Close()                                                   {}
