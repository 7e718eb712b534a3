// Package headless renders pages in headless Chrome for listings that only
// fill in their content with JavaScript or that reject plain clients.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultNavigationTimeout = 45 * time.Second
	DefaultSettle            = 750 * time.Millisecond
	DefaultWaitSelector      = "body"
)

// Config controls the behavior of the headless transport.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// WaitSelector must be ready before the DOM is captured.
	WaitSelector string
	// Settle is an extra pause after WaitSelector for late scripts.
	Settle time.Duration
}

// Transport implements dossier.Transport with one browser tab per request.
// Calls are serialized; the shared client throttle already spaces them.
type Transport struct {
	cfg         Config
	mu          sync.Mutex
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp prepares a browser allocator. Chrome itself starts on the
// first request.
func NewChromedp(cfg Config) (*Transport, error) {
	if cfg.NavigationTimeout < 0 || cfg.Settle < 0 {
		return nil, fmt.Errorf("headless timeouts must be >= 0")
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Transport{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser down.
func (t *Transport) Close() {
	t.allocCancel()
}

// Get navigates to the URL and returns the rendered DOM. The status is the
// one of the main document response.
func (t *Transport) Get(ctx context.Context, request dossier.FetchRequest) (dossier.FetchResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	taskCtx, taskCancel := chromedp.NewContext(t.allocator)
	defer taskCancel()
	// Stop the tab when the caller gives up.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, t.navTimeout())
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := t.render(taskCtx, request)
	if err != nil {
		if ctx.Err() != nil {
			return dossier.FetchResponse{}, fmt.Errorf("headless fetch canceled: %w", ctx.Err())
		}
		return dossier.FetchResponse{}, err
	}

	status, headers, responseURL := meta.snapshotWithFallbacks(request.URL, finalURL)
	return dossier.FetchResponse{
		URL:          responseURL,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (t *Transport) render(ctx context.Context, request dossier.FetchRequest) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		t.networkSetupAction(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady(t.waitSelector(), chromedp.ByQuery),
		chromedp.Sleep(t.settle()),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (t *Transport) networkSetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if ua := t.userAgent(headers); ua != "" {
			if err := emulation.SetUserAgentOverride(ua).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		extra := cloneHeader(headers)
		extra.Del("User-Agent")
		if len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(extra)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// userAgent prefers a per-request User-Agent header over the configured one.
func (t *Transport) userAgent(headers http.Header) string {
	if ua := headers.Get("User-Agent"); ua != "" {
		return ua
	}
	return t.cfg.UserAgent
}

func (t *Transport) navTimeout() time.Duration {
	if t.cfg.NavigationTimeout > 0 {
		return t.cfg.NavigationTimeout
	}
	return DefaultNavigationTimeout
}

func (t *Transport) settle() time.Duration {
	if t.cfg.Settle > 0 {
		return t.cfg.Settle
	}
	return DefaultSettle
}

func (t *Transport) waitSelector() string {
	if t.cfg.WaitSelector != "" {
		return t.cfg.WaitSelector
	}
	return DefaultWaitSelector
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

// capture keeps the first document response; later ones are subframes.
func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	status, headers, url := m.status, cloneHeader(m.headers), m.url
	m.mu.RUnlock()

	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		dst[k] = append([]string(nil), values...)
	}
	return dst
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
