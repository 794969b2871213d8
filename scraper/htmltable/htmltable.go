package htmltable

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"

	"tablenorm/config"
	"tablenorm/models"
	"tablenorm/storage"
	"tablenorm/utils"
)

var errAlreadyFetched = errors.New("already fetched")

// extractTableJS returns the first <table> on the page as rows of cell texts.
const extractTableJS = `
(() => {
	const table = document.querySelector('table');
	if (!table) return [];
	return Array.from(table.rows).map(r =>
		Array.from(r.cells).map(c => (c.innerText || '').trim()));
})()
`

// Fetcher renders pages in headless Chrome and reads their first HTML table.
// Open data portals often build their tables in JavaScript, so a plain HTTP
// fetch would see an empty page.
type Fetcher struct {
	cfg     *config.Config
	logger  *utils.Logger
	loader  *storage.Loader
	retry   *utils.RetryConfig
	visited *utils.URLSet

	// pageTimeout bounds a single navigation and extraction.
	pageTimeout time.Duration
}

// New creates a Fetcher. Raw rows are assembled through loader so HTML tables
// follow the same header and NA handling as files.
func New(cfg *config.Config, loader *storage.Loader, logger *utils.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		logger: logger,
		loader: loader,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		visited:     utils.NewURLSet(),
		pageTimeout: 45 * time.Second,
	}
}

// FetchAll fetches every distinct URL concurrently, at most MaxConcurrency at
// a time. It fails as a whole if any page fails; results follow the order of
// the first occurrence of each URL.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, opts storage.LoadOptions) ([]*models.RawTable, error) {
	var unique []string
	for _, u := range urls {
		if f.visited.Add(u) {
			unique = append(unique, u)
		} else {
			f.logger.Debug("[htmltable] Duplicate URL skipped: %s", u)
		}
	}
	if len(unique) == 0 {
		return nil, nil
	}

	allocCtx, cancel, err := f.newAllocator(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	tables := make([]*models.RawTable, len(unique))
	g, gctx := errgroup.WithContext(allocCtx)
	g.SetLimit(max(f.cfg.MaxConcurrency, 1))

	for i, u := range unique {
		i, u := i, u
		g.Go(func() error {
			t, err := f.fetch(gctx, TableName(u), u, opts)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// Load fetches a single page as a named table; it satisfies storage.TableLoader.
// A URL that was already fetched by this Fetcher is an error.
func (f *Fetcher) Load(name, source string, opts storage.LoadOptions) (*models.RawTable, error) {
	tables, err := f.FetchAll(context.Background(), []string{source}, opts)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("htmltable: %s: %w", source, errAlreadyFetched)
	}
	tables[0].Name = name
	return tables[0], nil
}

func (f *Fetcher) fetch(allocCtx context.Context, name, pageURL string, opts storage.LoadOptions) (*models.RawTable, error) {
	f.logger.Info("[htmltable] Fetching %s", pageURL)

	var records [][]string
	err := f.retry.Do(allocCtx, "fetch "+pageURL, func() error {
		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()
		ctx, cancelTimeout := context.WithTimeout(ctx, f.pageTimeout)
		defer cancelTimeout()

		records = nil
		return chromedp.Run(ctx,
			chromedp.Navigate(pageURL),
			chromedp.WaitReady("table", chromedp.ByQuery),
			chromedp.Evaluate(extractTableJS, &records),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("htmltable: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("htmltable: %s: %w", pageURL, models.ErrEmptyTable)
	}

	t, err := f.loader.NewRawTable(name, records, opts)
	if err != nil {
		return nil, fmt.Errorf("htmltable: %s: %w", pageURL, err)
	}
	f.logger.Info("[htmltable] %s: %d rows, %d columns", name, len(t.Rows), len(t.Headers))
	return t, nil
}

// newAllocator starts one browser whose tabs are shared by all fetches.
func (f *Fetcher) newAllocator(ctx context.Context) (context.Context, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if bin := findChromeBinary(f.cfg.ChromeBin); bin != "" {
		f.logger.Debug("[htmltable] Using browser binary: %s", bin)
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}

	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("htmltable: start browser: %w", err)
	}
	return browserCtx, cancel, nil
}

// TableName derives a dataset name from a page URL: host and path joined
// with underscores, e.g. "data.boston.gov/dataset/earnings" becomes
// "data_boston_gov_dataset_earnings".
func TableName(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return storage.SafeName(pageURL)
	}
	return storage.SafeName(u.Host + "_" + strings.Trim(u.Path, "/"))
}

// findChromeBinary locates a Chrome/Chromium binary, preferring configured.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
