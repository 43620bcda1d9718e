package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/sweeper/internal/core/domain"
)

const reportTTL = 30 * 24 * time.Hour

// SaveReport stores a finished report and indexes it by finish time.
func (c *Client) SaveReport(ctx context.Context, report domain.SweepReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, c.reportKey(report.RunID), data, reportTTL)
	pipe.ZAdd(ctx, c.reportsKey(), redis.Z{
		Score:  float64(report.FinishedAt.UnixMilli()),
		Member: report.RunID,
	})
	// Drop index entries whose report has expired.
	cutoff := time.Now().Add(-reportTTL).UnixMilli()
	pipe.ZRemRangeByScore(ctx, c.reportsKey(), "-inf", fmt.Sprintf("(%d", cutoff))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// LastReport returns the most recent report, or nil when none is stored.
func (c *Client) LastReport(ctx context.Context) (*domain.SweepReport, error) {
	reports, err := c.RecentReports(ctx, 1)
	if err != nil || len(reports) == 0 {
		return nil, err
	}
	return &reports[0], nil
}

// RecentReports returns up to limit reports, newest first.
func (c *Client) RecentReports(ctx context.Context, limit int) ([]domain.SweepReport, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := c.rdb.ZRevRange(ctx, c.reportsKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	reports := make([]domain.SweepReport, 0, len(ids))
	for _, id := range ids {
		data, err := c.rdb.Get(ctx, c.reportKey(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get report %s: %w", id, err)
		}
		var r domain.SweepReport
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report %s: %w", id, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}
