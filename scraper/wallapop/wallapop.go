package wallapop

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"carhist/config"
	"carhist/models"
	"carhist/utils"
)

const (
	baseURL = "https://es.wallapop.com/"

	// ExtractedAtLayout is the format of the Fecha Extracción column.
	ExtractedAtLayout = "02/01/2006 15:04"

	maxLoadMoreClicks = 40
)

// Scraper collects every vehicle advert of a list of seller profiles.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	pool    *utils.WorkerPool
	visited *utils.SeenSet
	retry   *utils.RetryConfig
	now     func() time.Time

	mu       sync.Mutex
	listings []*models.RawListing
	failed   int
}

// New creates a ready-to-use Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		pool:    utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		visited: utils.NewSeenSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		now: time.Now,
	}
}

// Scrape visits each seller profile, expands its full catalogue and extracts
// every item page. A seller that fails is logged and skipped; an error is
// returned only when nothing could be scraped.
func (s *Scraper) Scrape(ctx context.Context, sellers []config.Seller) ([]*models.RawListing, error) {
	s.logger.Info("[wallapop] Starting scrape of %d sellers", len(sellers))

	chromeBin := s.cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	s.logger.Info("[wallapop] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	s.acceptCookies(browserCtx)

	for i, seller := range sellers {
		if err := ctx.Err(); err != nil {
			return s.listings, err
		}
		s.logger.Info("[wallapop] Seller %d/%d: %s", i+1, len(sellers), seller.Name)

		links, err := s.sellerItemLinks(browserCtx, seller)
		if err != nil {
			s.logger.Error("[wallapop] Seller %s failed: %v", seller.Name, err)
			continue
		}
		if len(links) == 0 {
			s.logger.Warn("[wallapop] Seller %s has no listed items", seller.Name)
			continue
		}
		s.logger.Info("[wallapop] Seller %s: %d items", seller.Name, len(links))

		s.scrapeItems(browserCtx, seller, links)
	}

	s.logger.Info("[wallapop] Scrape complete: %d listings, %d item pages failed", len(s.listings), s.failed)
	if len(s.listings) == 0 {
		return nil, fmt.Errorf("wallapop: no listings scraped from %d sellers", len(sellers))
	}
	return s.listings, nil
}

// acceptCookies dismisses the consent banner once so later pages render
// without the overlay. Failure is not fatal.
func (s *Scraper) acceptCookies(browserCtx context.Context) {
	ctx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Navigate(baseURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(`
			(function() {
				var btn = document.querySelector('#onetrust-accept-btn-handler');
				if (!btn) {
					var buttons = document.querySelectorAll('button');
					for (var i = 0; i < buttons.length; i++) {
						if ((buttons[i].innerText || '').trim().indexOf('Aceptar') === 0) { btn = buttons[i]; break; }
					}
				}
				if (btn) { btn.click(); return true; }
				return false;
			})()
		`, nil),
	)
	if err != nil {
		s.logger.Debug("[wallapop] Cookie banner not handled: %v", err)
	}
}

// sellerItemLinks loads a seller profile, clicks "load more" until the item
// count stops growing and returns the item URLs on the page.
func (s *Scraper) sellerItemLinks(browserCtx context.Context, seller config.Seller) ([]string, error) {
	var html string

	err := s.retry.Do(browserCtx, "profile "+seller.Name, func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 5*time.Minute)
		defer cancelTimeout()

		if err := chromedp.Run(ctx,
			chromedp.Navigate(seller.ProfileURL),
			chromedp.Sleep(4*time.Second),
		); err != nil {
			return fmt.Errorf("chromedp navigate: %w", err)
		}

		before := -1
		for click := 0; click < maxLoadMoreClicks; click++ {
			var count int
			var clicked bool
			err := chromedp.Run(ctx,
				chromedp.Evaluate(`document.querySelectorAll('a[href*="/item/"]').length`, &count),
				chromedp.Evaluate(`
					(function() {
						window.scrollTo(0, document.body.scrollHeight);
						var candidates = document.querySelectorAll('walla-button, button');
						for (var i = 0; i < candidates.length; i++) {
							var text = (candidates[i].innerText || candidates[i].getAttribute('text') || '').toLowerCase();
							if (text.indexOf('cargar más') !== -1 || text.indexOf('ver más') !== -1) {
								candidates[i].click();
								return true;
							}
						}
						return false;
					})()
				`, &clicked),
				chromedp.Sleep(2*time.Second),
			)
			if err != nil {
				return fmt.Errorf("chromedp load more: %w", err)
			}
			if count == before && !clicked {
				break
			}
			before = count
		}

		if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
			return fmt.Errorf("chromedp read profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ParseItemLinks(html, baseURL)
}

// scrapeItems fetches the item pages of one seller through the worker pool.
func (s *Scraper) scrapeItems(browserCtx context.Context, seller config.Seller, links []string) {
	for _, link := range links {
		link := link
		if !s.visited.Add(link) {
			s.logger.Debug("[wallapop] Skipping duplicate: %s", link)
			continue
		}

		s.pool.Submit(func() {
			listing, err := s.scrapeItem(browserCtx, link, seller.Name)
			s.mu.Lock()
			defer s.mu.Unlock()
			if err != nil {
				s.failed++
				s.logger.Warn("[wallapop] Item page failed for %s: %v", link, err)
				return
			}
			s.listings = append(s.listings, listing)
			s.logger.Debug("[wallapop] %s %s | %s", listing.Brand, listing.Model, listing.AskingPrice)
		})
	}
	s.pool.Wait()
}

// scrapeItem loads one item page and parses it.
func (s *Scraper) scrapeItem(browserCtx context.Context, itemURL, seller string) (*models.RawListing, error) {
	var html string

	err := s.retry.Do(browserCtx, "item "+itemURL, func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		err := chromedp.Run(ctx,
			chromedp.Navigate(itemURL),
			chromedp.WaitVisible("h1", chromedp.ByQuery),
			chromedp.Sleep(1500*time.Millisecond),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("chromedp item page: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	listing, err := ParseItem(html, itemURL, seller)
	if err != nil {
		return nil, err
	}
	listing.ExtractedAt = s.now().Format(ExtractedAtLayout)
	return listing, nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
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
