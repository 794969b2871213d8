package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"tablenorm/config"
	"tablenorm/models"
	"tablenorm/scraper/htmltable"
	"tablenorm/services"
	"tablenorm/storage"
	"tablenorm/utils"
)

// dataset is one input table and how to read it.
type dataset struct {
	name   string
	source string
	loader storage.TableLoader
	opts   storage.LoadOptions
}

// pipeline normalizes raw tables, runs their recipes and hands every
// resulting table to the writers.
type pipeline struct {
	logger     *utils.Logger
	overrides  config.DatasetRules
	normalizer *services.Normalizer
	summary    *services.SummaryService
	writers    []storage.TableWriter
	headRows   int

	// printMu keeps summaries of concurrently processed tables apart.
	printMu sync.Mutex

	mu      sync.Mutex
	written map[string]int
}

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Table normalizer starting ===")
	logger.Info("Config: output: %s | concurrency: %d | postgres: %t | html tables: %d",
		cfg.OutputDir, cfg.MaxConcurrency, cfg.PostgresEnabled, len(cfg.HTMLTableURLs))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	overrides, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Error("Failed to load rules: %v", err)
		os.Exit(1)
	}

	csvWriter, err := storage.NewCSVWriter(cfg.OutputDir)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
		os.Exit(1)
	}
	defer csvWriter.Close()

	p := &pipeline{
		logger:     logger,
		overrides:  overrides,
		normalizer: services.NewNormalizer(logger),
		summary:    services.NewSummaryService(logger),
		writers:    []storage.TableWriter{csvWriter},
		headRows:   cfg.HeadRows,
		written:    make(map[string]int),
	}

	var pgWriter *storage.PostgresWriter
	if cfg.PostgresEnabled {
		retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger}
		pgWriter, err = storage.NewPostgresWriter(ctx, cfg.DSN(), retry, logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			os.Exit(1)
		}
		defer pgWriter.Close()
		p.writers = append(p.writers, pgWriter)
	}

	loader := storage.NewLoader(logger)
	datasets := []dataset{
		{
			name:   services.DatasetEarnings,
			source: cfg.EarningsCSV,
			loader: loader,
			opts:   storage.LoadOptions{Encoding: cfg.EarningsEncoding, NAValues: cfg.NAValues},
		},
		{
			name:   services.DatasetUnemployment,
			source: cfg.UnemploymentXLSX,
			loader: loader,
			opts:   storage.LoadOptions{NAValues: cfg.NAValues, Sheet: cfg.UnemploymentSheet},
		},
		{
			name:   services.DatasetAttendees,
			source: cfg.AttendeesCSV,
			loader: loader,
			opts:   storage.LoadOptions{NAValues: cfg.NAValues},
		},
	}

	for i, ds := range datasets {
		if _, err := os.Stat(ds.source); err != nil {
			logger.Warn("Skipping %s: %v", ds.name, err)
			datasets[i].loader = nil
		}
	}

	if len(cfg.HTMLTableURLs) > 0 {
		fetcher := htmltable.New(cfg, loader, logger)
		seen := utils.NewURLSet()
		for _, u := range cfg.HTMLTableURLs {
			if !seen.Add(u) {
				continue
			}
			datasets = append(datasets, dataset{
				name:   htmltable.TableName(u),
				source: u,
				loader: fetcher,
				opts:   storage.LoadOptions{NAValues: cfg.NAValues},
			})
		}
	}

	pool := utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs)
	submitted := 0

	for _, ds := range datasets {
		ds := ds
		if ds.loader == nil {
			continue
		}
		submitted++
		pool.Submit(func() error {
			raw, err := ds.loader.Load(ds.name, ds.source, ds.opts)
			if err != nil {
				return fmt.Errorf("%s: %w", ds.name, err)
			}
			return p.process(raw)
		})
	}

	if submitted == 0 {
		logger.Error("No input tables found. Exiting.")
		os.Exit(1)
	}

	if err := pool.Wait(); err != nil {
		logger.Error("Some tables failed: %v", err)
		os.Exit(1)
	}

	if pgWriter != nil {
		if err := verifyStored(ctx, pgWriter, p.written, logger); err != nil {
			logger.Error("PostgreSQL read-back failed: %v", err)
			os.Exit(1)
		}
	}

	fmt.Printf("  Done. %d tables written to %s\n\n", len(csvWriter.Written()), cfg.OutputDir)
}

// process normalizes one raw table, runs its recipe and writes every result.
// Configuration errors abort the table before anything is written.
func (p *pipeline) process(raw *models.RawTable) error {
	rules := p.overrides.For(raw.Name, services.DefaultRules(raw.Name, raw.Headers))

	clean, report, err := p.normalizer.NormalizeWithReport(raw, rules)
	if err != nil {
		var ruleErr *models.RuleError
		if errors.As(err, &ruleErr) {
			p.logger.Error("[%s] bad rule for column %q: %s", raw.Name, ruleErr.Column, ruleErr.Reason)
		}
		return fmt.Errorf("%s: normalize: %w", raw.Name, err)
	}
	if report.RowsDropped() > 0 {
		p.logger.Warn("[%s] %d of %d rows dropped", raw.Name, report.RowsDropped(), report.RowsIn)
	}

	tables, err := services.RecipeFor(raw.Name)(clean)
	if err != nil {
		return fmt.Errorf("%s: recipe: %w", raw.Name, err)
	}

	var errs []error
	for _, t := range tables {
		for _, w := range p.writers {
			if err := w.Write(t); err != nil {
				errs = append(errs, fmt.Errorf("%s: write: %w", t.Name, err))
			}
		}
		p.print(t)

		p.mu.Lock()
		p.written[t.Name] = len(t.Rows)
		p.mu.Unlock()
	}
	return errors.Join(errs...)
}

// verifyStored reads every written table back from PostgreSQL and compares
// row counts.
func verifyStored(ctx context.Context, pw *storage.PostgresWriter, written map[string]int, logger *utils.Logger) error {
	var errs []error
	for name, want := range written {
		rows, err := pw.FetchAll(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(rows) != want {
			errs = append(errs, fmt.Errorf("%s: stored %d rows, want %d", name, len(rows), want))
			continue
		}
		logger.Debug("[postgres] %s: verified %d rows", name, want)
	}
	return errors.Join(errs...)
}

func (p *pipeline) print(t *models.CleanTable) {
	r := p.summary.Generate(t)

	p.printMu.Lock()
	defer p.printMu.Unlock()
	p.summary.Print(os.Stdout, r, t, p.headRows)
}
