package render

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// extractJS collects forms, scripts and the navigation redirect count in one round trip.
const extractJS = `(() => {
  const forms = Array.from(document.forms).map(f => ({
    action: f.getAttribute('action') || '',
    fields: Array.from(f.querySelectorAll('input, select, textarea')).map(i => ({
      name: (i.getAttribute('name') || i.getAttribute('id') || '').toLowerCase(),
      type: (i.getAttribute('type') || i.tagName).toLowerCase(),
    })),
  }));
  const scripts = Array.from(document.scripts).map(s => s.textContent || '');
  const nav = performance.getEntriesByType('navigation')[0];
  return {
    forms,
    scripts,
    redirects: nav ? nav.redirectCount : 0,
    text: document.body ? document.body.innerText : '',
    final_url: location.href,
  };
})()`

type extracted struct {
	Forms     []Form   `json:"forms"`
	Scripts   []string `json:"scripts"`
	Redirects int      `json:"redirects"`
	Text      string   `json:"text"`
	FinalURL  string   `json:"final_url"`
}

// ChromeProvider renders pages with a headless Chrome driven over the
// DevTools protocol. One browser process is shared; each Render opens a tab.
type ChromeProvider struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	timeout     time.Duration
	userAgent   string
}

// NewChromeProvider starts the browser. execPath may be empty to use the
// chromedp default lookup.
func NewChromeProvider(execPath, userAgent string, timeout time.Duration) (*ChromeProvider, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	// start the browser now so a missing binary fails at startup
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, err
	}
	return &ChromeProvider{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancel:      cancel,
		timeout:     timeout,
		userAgent:   userAgent,
	}, nil
}

func (c *ChromeProvider) Render(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()

	// propagate the caller's cancellation to the tab
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	page := &Page{URL: url}
	var out extracted
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.Title(&page.Title),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
		chromedp.Evaluate(extractJS, &out),
	)
	if err != nil {
		if errors.Is(tabCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrRenderTimeout
		}
		return nil, err
	}
	page.Forms = out.Forms
	page.Scripts = out.Scripts
	page.Redirects = out.Redirects
	page.Text = out.Text
	page.FinalURL = out.FinalURL
	return page, nil
}

// Close shuts the browser down.
func (c *ChromeProvider) Close() error {
	c.cancel()
	c.cancelAlloc()
	return nil
}
