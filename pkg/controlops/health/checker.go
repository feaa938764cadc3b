// Package health probes tool URLs and keeps one health record per tool.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Subash107/control-ops-local1/pkg/controlops/metrics"
	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
)

// ErrNoURL is the recorded error for tools without a URL
const ErrNoURL = "No URL configured"

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 4
	maxErrorLength     = 512
	maxDrainBytes      = 64 << 10
)

// Options configures a Checker. Zero values fall back to defaults.
type Options struct {
	Timeout     time.Duration
	Concurrency int
	Client      *http.Client
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Checker refreshes the health records of every tool in the catalog.
type Checker struct {
	db          *gorm.DB
	client      *http.Client
	timeout     time.Duration
	concurrency int
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time

	// one-slot semaphore so scheduled and manual passes never overlap
	pass chan struct{}
}

// NewChecker creates a checker over db
func NewChecker(db *gorm.DB, opts Options) *Checker {
	c := &Checker{
		db:          db,
		client:      opts.Client,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		now:         time.Now,
		pass:        make(chan struct{}, 1),
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.concurrency < 1 {
		c.concurrency = defaultConcurrency
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Summary counts the outcomes of one pass
type Summary struct {
	Checked int `json:"checked"`
	Up      int `json:"up"`
	Down    int `json:"down"`
	Unknown int `json:"unknown"`
}

// Summarize tallies records by status
func Summarize(records []models.ToolHealth) Summary {
	s := Summary{Checked: len(records)}
	for _, r := range records {
		switch r.Status {
		case models.HealthUp:
			s.Up++
		case models.HealthDown:
			s.Down++
		default:
			s.Unknown++
		}
	}
	return s
}

// RefreshAll probes every tool once and upserts the outcome. A failing probe
// is recorded as down and never stops the pass; the returned error joins any
// storage failures.
func (c *Checker) RefreshAll(ctx context.Context) ([]models.ToolHealth, error) {
	select {
	case c.pass <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for running pass: %w", ctx.Err())
	}
	defer func() { <-c.pass }()

	start := time.Now()
	var catalog []models.Tool
	if err := c.db.WithContext(ctx).Select("id", "url").Order("id").Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("load tools: %w", err)
	}

	records := make([]models.ToolHealth, len(catalog))
	storeErrs := make([]error, len(catalog))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, tool := range catalog {
		g.Go(func() error {
			records[i] = c.Check(ctx, tool)
			if err := Upsert(c.db.WithContext(ctx), records[i]); err != nil {
				storeErrs[i] = fmt.Errorf("store health of tool %d: %w", tool.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	c.metrics.ObservePass(elapsed)
	summary := Summarize(records)
	c.logger.Info("health refresh complete",
		zap.Int("checked", summary.Checked),
		zap.Int("up", summary.Up),
		zap.Int("down", summary.Down),
		zap.Int("unknown", summary.Unknown),
		zap.Duration("elapsed", elapsed),
	)

	return records, errors.Join(storeErrs...)
}

// Check probes one tool without storing the result
func (c *Checker) Check(ctx context.Context, tool models.Tool) models.ToolHealth {
	checkedAt := c.now()
	record := models.ToolHealth{ToolID: tool.ID, LastCheckedAt: &checkedAt}

	if tool.URL == "" {
		record.Status = models.HealthUnknown
		record.LastError = ptr(ErrNoURL)
		c.metrics.ObserveProbe(string(record.Status), 0)
		return record
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	statusCode, err := c.probe(probeCtx, tool.URL)
	latency := time.Since(start)
	record.LatencyMS = ptr(float64(latency.Microseconds()) / 1000)

	switch {
	case err != nil:
		record.Status = models.HealthDown
		record.LastError = ptr(truncate(err.Error(), maxErrorLength))
		c.logger.Debug("tool probe failed", zap.Uint("tool_id", tool.ID), zap.String("url", tool.URL), zap.Error(err))
	case statusCode >= 200 && statusCode < 300:
		record.Status = models.HealthUp
	default:
		record.Status = models.HealthDown
		record.LastError = ptr(fmt.Sprintf("status=%d", statusCode))
	}

	c.metrics.ObserveProbe(string(record.Status), latency)
	return record
}

func (c *Checker) probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode, nil
}

// Upsert creates or overwrites the health record of record.ToolID
func Upsert(db *gorm.DB, record models.ToolHealth) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tool_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "last_checked_at", "latency_ms", "last_error"}),
	}).Create(&record).Error
}

// Get returns the stored record of a tool, or an unknown record when it has
// never been checked. The tool must exist.
func Get(ctx context.Context, db *gorm.DB, toolID uint) (models.ToolHealth, error) {
	var tool models.Tool
	if err := db.WithContext(ctx).Select("id").First(&tool, toolID).Error; err != nil {
		return models.ToolHealth{}, err
	}

	var record models.ToolHealth
	err := db.WithContext(ctx).Where("tool_id = ?", toolID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ToolHealth{ToolID: toolID, Status: models.HealthUnknown}, nil
	}
	return record, err
}

func ptr[T any](v T) *T {
	return &v
}

// truncate caps s at max bytes without leaving a partial rune behind
func truncate(s string, max int) string {
	if len(s) > max {
		s = s[:max]
	}
	return strings.ToValidUTF8(s, "")
}
