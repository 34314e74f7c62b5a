package document

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChromeHost drives a live page in headless Chrome. Load reads the current DOM
// and Commit rewrites the page from the committed markup.
type ChromeHost struct {
	url     string
	host    string
	timeout time.Duration
	logger  *zap.Logger

	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewChromeHost launches a browser and navigates to source, which is either a
// bare URL or "chrome:<url>". locationHost overrides the host derived from the URL.
func NewChromeHost(ctx context.Context, source, locationHost string, timeout time.Duration, logger *zap.Logger) (*ChromeHost, error) {
	raw := strings.TrimPrefix(source, ChromePrefix)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid chrome document url %q", raw)
	}
	if locationHost == "" {
		locationHost = u.Hostname()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	h := &ChromeHost{
		url:         raw,
		host:        locationHost,
		timeout:     timeout,
		logger:      logger.Named("chromehost"),
		ctx:         tabCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
	}

	if err := h.run(chromedp.Navigate(raw)); err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", raw, err)
	}
	h.logger.Info("Attached to live document.", zap.String("url", raw))
	return h, nil
}

func (h *ChromeHost) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (h *ChromeHost) Load(ctx context.Context) (*Document, error) {
	var markup string
	if err := h.run(chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to read live document: %w", err)
	}
	return ParseString(markup, h.host)
}

func (h *ChromeHost) Commit(ctx context.Context, doc *Document) error {
	markup, err := doc.Render()
	if err != nil {
		return err
	}
	quoted, err := json.Marshal(markup)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	script := fmt.Sprintf("document.open();document.write(%s);document.close();true", quoted)
	var ok bool
	if err := h.run(chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("failed to write live document: %w", err)
	}
	return nil
}

func (h *ChromeHost) Name() string { return h.url }

// Close shuts down the tab and the browser process.
func (h *ChromeHost) Close() {
	h.cancelTab()
	h.cancelAlloc()
}
