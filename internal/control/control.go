package control

import (
	"context"

	"github.com/vietddude/sweeper/internal/core/domain"
)

// ReportStore keeps finished sweep reports where every replica can read them.
type ReportStore interface {
	SaveReport(ctx context.Context, report domain.SweepReport) error
	LastReport(ctx context.Context) (*domain.SweepReport, error)
}
