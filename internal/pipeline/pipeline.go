// Package pipeline drives one ETL execution: bronze CSVs are
// normalized, validated, persisted to the silver and gold layers, and
// the run's KPIs and alerts are computed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ecodata/plantpulse/internal/alerting"
	"github.com/ecodata/plantpulse/internal/config"
	"github.com/ecodata/plantpulse/internal/gold"
	"github.com/ecodata/plantpulse/internal/kpi"
	"github.com/ecodata/plantpulse/internal/metrics"
	"github.com/ecodata/plantpulse/internal/period"
	"github.com/ecodata/plantpulse/internal/quality"
	"github.com/ecodata/plantpulse/internal/schema"
	"github.com/ecodata/plantpulse/internal/silver"
	"github.com/ecodata/plantpulse/internal/table"
)

// Bronze file names.
const (
	TelemetryFile  = "telemetria_raw.csv"
	ProductionFile = "producao_raw.csv"
	EventsFile     = "eventos_raw.csv"
)

// ErrMissingFile marks a bronze input that does not exist yet.
var ErrMissingFile = errors.New("pipeline: bronze file missing")

// Result is everything one run produced. The API serves the latest
// Result; the alerts in it already passed cooldown.
type Result struct {
	ExecutedAt  time.Time             `json:"executed_at"`
	Window      period.Window         `json:"window"`
	Summary     kpi.Summary           `json:"summary"`
	OEE         kpi.OEE               `json:"oee"`
	Shifts      []kpi.ShiftRefuse     `json:"shifts"`
	Pareto      []kpi.ParetoEntry     `json:"pareto"`
	Maintenance kpi.Maintenance       `json:"maintenance"`
	Energy      kpi.EnergyCost        `json:"energy"`
	DefectRates []kpi.DefectRate      `json:"defect_rates"`
	Status      map[string]kpi.Sample `json:"status"`
	Gold        []kpi.DailyKPIs       `json:"gold"`
	Alerts      []alerting.Alert      `json:"alerts"`
	Quality     *quality.RunReport    `json:"quality"`
}

// Pipeline wires the processing stages together.
type Pipeline struct {
	cfg        config.Config
	logger     *zap.Logger
	metrics    *metrics.Pipeline
	normalizer *schema.Normalizer
	validator  *quality.Validator
	selector   *period.Selector
	aggregator *kpi.Aggregator
	engine     *alerting.Engine
	notifier   *alerting.Fanout
	silver     *silver.Writer
	gold       *gold.Writer
	pg         *gold.Postgres
	now        func() time.Time
}

// New builds a pipeline from the configuration. The Postgres sink and
// the Kafka/webhook channels are only wired when configured.
func New(cfg config.Config, logger *zap.Logger, m *metrics.Pipeline) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var store alerting.CooldownStore
	if cfg.Alerting.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Alerting.RedisAddr})
		store = alerting.NewRedisCooldown(client, cfg.Alerting.Detection.Cooldown)
	} else {
		store = alerting.NewMemoryCooldown(cfg.Alerting.Detection.Cooldown)
	}

	channels := []alerting.Notifier{alerting.NewLogNotifier(logger.Named("alerts"))}
	if cfg.Alerting.WebhookURL != "" {
		channels = append(channels, alerting.NewWebhookNotifier(cfg.Alerting.WebhookURL))
	}
	if len(cfg.Alerting.KafkaBrokers) > 0 {
		channels = append(channels, alerting.NewKafkaNotifier(cfg.Alerting.KafkaBrokers, cfg.Alerting.KafkaTopic))
	}

	silverWriter, err := silver.NewWriter(cfg.Paths.Silver, cfg.Silver.Codec, logger.Named("silver"))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		normalizer: schema.NewNormalizer(logger.Named("schema")),
		validator:  quality.NewValidator(cfg.Quality, logger.Named("quality")),
		selector:   period.NewSelector(cfg.Period),
		aggregator: kpi.NewAggregator(cfg.KPI),
		engine:     alerting.NewEngine(cfg.Alerting.Detection, store, logger.Named("alerting")),
		notifier:   alerting.NewFanout(channels...),
		silver:     silverWriter,
		gold:       gold.NewWriter(cfg.Paths.Gold, logger.Named("gold")),
		now:        time.Now,
	}

	if cfg.Gold.PostgresEnabled {
		pg, err := gold.NewPostgres(cfg.Gold.Postgres)
		if err != nil {
			return nil, err
		}
		p.pg = pg
	}
	return p, nil
}

// Close releases held connections.
func (p *Pipeline) Close() error {
	if p.pg != nil {
		return p.pg.Close()
	}
	return nil
}

type datasetRun struct {
	telemetry  []schema.TelemetryRecord
	production []schema.ProductionRecord
	events     []schema.EventRecord
	reports    [3]*quality.Report
}

// Run executes the whole pipeline once. A panic inside a stage is
// recovered and returned as an error so serve and watch modes outlive
// bad input files.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: panic: %v", r)
			p.countRun("panic")
		}
	}()

	started := p.now()
	run, err := p.extract(ctx)
	if err != nil {
		p.countRun("failure")
		return nil, err
	}

	if err := p.persistSilver(run); err != nil {
		p.countRun("failure")
		return nil, err
	}

	res = p.analyze(ctx, run, started)

	if err := p.persistGold(ctx, res.Gold); err != nil {
		p.countRun("failure")
		return nil, err
	}
	if _, err := res.Quality.Write(p.cfg.Paths.Reports); err != nil {
		p.countRun("failure")
		return nil, err
	}

	if err := p.notifier.NotifyAll(ctx, res.Alerts); err != nil {
		// Delivery failures are logged, not fatal: the run's artifacts
		// are already on disk.
		p.logger.Error("alert delivery incomplete", zap.Error(err))
	}

	p.countRun("success")
	if p.metrics != nil {
		p.metrics.LastRunUnix.Set(float64(p.now().Unix()))
	}
	p.logger.Info("pipeline run complete",
		zap.Duration("elapsed", p.now().Sub(started)),
		zap.String("window", res.Window.Label),
		zap.Int("alerts", len(res.Alerts)),
	)
	return res, nil
}

// extract loads and normalizes the three bronze datasets concurrently.
func (p *Pipeline) extract(ctx context.Context) (*datasetRun, error) {
	run := &datasetRun{}
	g, _ := errgroup.WithContext(ctx)

	g.Go(p.stage("telemetry", func() error {
		raw, err := p.loadBronze(TelemetryFile)
		if err != nil {
			return err
		}
		records, stats := p.normalizer.Telemetry(raw)
		valid, report := p.validator.Telemetry(records, stats)
		run.telemetry, run.reports[0] = valid, report
		p.countRows("telemetry", stats, report)
		return nil
	}))
	g.Go(p.stage("production", func() error {
		raw, err := p.loadBronze(ProductionFile)
		if err != nil {
			return err
		}
		records, stats := p.normalizer.Production(raw)
		valid, report := p.validator.Production(records, stats)
		run.production, run.reports[1] = valid, report
		p.countRows("production", stats, report)
		return nil
	}))
	g.Go(p.stage("events", func() error {
		raw, err := p.loadBronze(EventsFile)
		if err != nil {
			return err
		}
		records, stats := p.normalizer.Events(raw)
		valid, report := p.validator.Events(records, stats)
		run.events, run.reports[2] = valid, report
		p.countRows("events", stats, report)
		return nil
	}))

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return run, nil
}

// loadBronze reads one raw CSV, mapping a missing file to
// ErrMissingFile with a remediation hint in the log.
func (p *Pipeline) loadBronze(name string) (*table.Table, error) {
	path := filepath.Join(p.cfg.Paths.Bronze, name)
	raw, err := table.ReadCSV(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.logger.Error("bronze file missing; run the plant simulator to generate raw data",
				zap.String("path", path))
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, err
	}
	return raw, nil
}

// persistSilver writes the validated datasets.
func (p *Pipeline) persistSilver(run *datasetRun) error {
	done := p.stageTimer("silver")
	defer done()
	if err := p.silver.WriteTelemetry(run.telemetry); err != nil {
		return err
	}
	if err := p.silver.WriteProduction(run.production); err != nil {
		return err
	}
	return p.silver.WriteEvents(run.events)
}

// analyze computes the window, KPIs and alerts for the run.
func (p *Pipeline) analyze(ctx context.Context, run *datasetRun, started time.Time) *Result {
	done := p.stageTimer("analyze")
	defer done()

	window, ok := p.selector.Select(run.production)
	if !ok {
		window = period.Window{Label: "No Data"}
	}

	samples := kpi.AggregateTelemetry(run.telemetry, time.Minute)
	alerts, err := p.engine.Evaluate(ctx, samples)
	if err != nil {
		// Cooldown store failures degrade to an alert-free run.
		p.logger.Error("alert evaluation failed", zap.Error(err))
		alerts = nil
	}
	if p.metrics != nil {
		for _, a := range alerts {
			p.metrics.AlertsEmitted.WithLabelValues(a.Type, a.Severity).Inc()
		}
	}

	status := "success"
	for _, r := range run.reports {
		if r != nil && !r.SchemaOK {
			status = "degraded"
		}
	}

	return &Result{
		ExecutedAt:  started,
		Window:      window,
		Summary:     p.aggregator.Summarize(run.production, run.telemetry, window),
		OEE:         p.aggregator.ComputeOEE(run.production, window),
		Shifts:      p.aggregator.RefuseByShift(run.production, window),
		Pareto:      p.aggregator.ParetoOfStoppages(run.events, window),
		Maintenance: p.aggregator.ComputeMaintenance(run.events, window),
		Energy:      p.aggregator.Energy(run.production, window),
		DefectRates: kpi.DefectRates(run.telemetry),
		Status:      kpi.LatestStatus(samples),
		Gold:        p.aggregator.DailyGold(run.production),
		Alerts:      alerts,
		Quality: &quality.RunReport{
			ExecutedAt: started,
			Status:     status,
			Datasets:   []*quality.Report{run.reports[0], run.reports[1], run.reports[2]},
		},
	}
}

// persistGold writes the daily aggregates to CSV and, when configured,
// mirrors them into Postgres.
func (p *Pipeline) persistGold(ctx context.Context, rows []kpi.DailyKPIs) error {
	done := p.stageTimer("gold")
	defer done()
	if err := p.gold.Write(rows); err != nil {
		return err
	}
	if p.pg != nil {
		if err := p.pg.CreateTables(ctx); err != nil {
			return err
		}
		return p.pg.Upsert(ctx, rows)
	}
	return nil
}

// stage wraps a stage function with timing and panic recovery so one
// bad dataset fails its goroutine instead of the process.
func (p *Pipeline) stage(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("pipeline: %s stage panic: %v", name, r)
			}
		}()
		done := p.stageTimer(name)
		defer done()
		return fn()
	}
}

func (p *Pipeline) stageTimer(name string) func() {
	start := p.now()
	return func() {
		elapsed := p.now().Sub(start)
		if p.metrics != nil {
			p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		}
		p.logger.Debug("stage done", zap.String("stage", name), zap.Duration("elapsed", elapsed))
	}
}

func (p *Pipeline) countRows(dataset string, stats *schema.Stats, report *quality.Report) {
	if p.metrics == nil {
		return
	}
	p.metrics.RowsProcessed.WithLabelValues(dataset).Add(float64(report.Processing.FinalRecords))
	p.metrics.RowsDropped.WithLabelValues(dataset, "timestamp").Add(float64(stats.DroppedTimestamps))
	p.metrics.RowsDropped.WithLabelValues(dataset, "invalid").Add(float64(report.Processing.RemovedInvalid))
}

func (p *Pipeline) countRun(outcome string) {
	if p.metrics != nil {
		p.metrics.Runs.WithLabelValues(outcome).Inc()
	}
}
