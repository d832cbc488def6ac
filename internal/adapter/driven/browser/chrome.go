package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

const (
	// implicitWait bounds element lookups that have no explicit wait.
	implicitWait = 10 * time.Second
	pollInterval = 100 * time.Millisecond
)

type dialogResult struct {
	message string
	err     error
}

// chromeDriver is the chromedp-backed driver.
type chromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	dialogs     chan dialogResult
	logger      *slog.Logger
}

var _ driver = (*chromeDriver)(nil)

// launchChrome starts a browser with the stability flags needed in
// containers: no sandbox and no /dev/shm.
func launchChrome(ctx context.Context, execPath string, headless bool, logger *slog.Logger) (*chromeDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("headless", headless),
		chromedp.WindowSize(1280, 900),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	// The browser outlives request cancellation; Close tears it down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug("chromedp", "message", fmt.Sprintf(format, args...))
		}),
	)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	d := &chromeDriver{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		dialogs:     make(chan dialogResult, 1),
		logger:      logger,
	}
	chromedp.ListenTarget(browserCtx, d.onEvent)

	logger.Info("browser launched", "headless", headless)
	return d, nil
}

// onEvent accepts native dialogs as they open. Actions cannot run inside the
// listener, so acceptance happens on its own goroutine.
func (d *chromeDriver) onEvent(ev any) {
	e, ok := ev.(*page.EventJavascriptDialogOpening)
	if !ok {
		return
	}
	go func() {
		err := chromedp.Run(d.ctx, page.HandleJavaScriptDialog(true))
		select {
		case d.dialogs <- dialogResult{message: e.Message, err: err}:
		default:
		}
	}()
}

// run executes actions on the browser tab, bounded by both the caller's
// context and timeout.
func (d *chromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, chromedp.ErrPollingTimeout) {
		return fmt.Errorf("%w: %w", errWaitTimeout, err)
	}
	return err
}

func queryOpt(sel Selector) chromedp.QueryOption {
	if sel.XPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, implicitWait*3, chromedp.Navigate(url))
}

func (d *chromeDriver) WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.WaitVisible(sel.Query, queryOpt(sel)))
}

func (d *chromeDriver) WaitClickable(ctx context.Context, sel Selector, timeout time.Duration) error {
	return d.run(ctx, timeout,
		chromedp.WaitVisible(sel.Query, queryOpt(sel)),
		chromedp.WaitEnabled(sel.Query, queryOpt(sel)),
	)
}

func (d *chromeDriver) WaitInvisible(ctx context.Context, sel Selector, timeout time.Duration) error {
	expr := `(() => {
		const el = ` + sel.jsLookup() + `;
		if (!el) return true;
		const style = window.getComputedStyle(el);
		return style.display === "none" || style.visibility === "hidden" || el.offsetParent === null;
	})()`
	var hidden bool
	return d.run(ctx, timeout+time.Second,
		chromedp.Poll(expr, &hidden, chromedp.WithPollingInterval(pollInterval), chromedp.WithPollingTimeout(timeout)),
	)
}

func (d *chromeDriver) Fill(ctx context.Context, sel Selector, value string) error {
	return d.run(ctx, implicitWait,
		chromedp.Clear(sel.Query, queryOpt(sel)),
		chromedp.SendKeys(sel.Query, value, queryOpt(sel)),
	)
}

func (d *chromeDriver) Click(ctx context.Context, sel Selector) error {
	expr := `(() => {
		const el = ` + sel.jsLookup() + `;
		if (!el) return "missing";
		el.scrollIntoView({block: "center"});
		const r = el.getBoundingClientRect();
		const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
		return hit === el || el.contains(hit) ? "ok" : "intercepted";
	})()`

	var hit string
	if err := d.run(ctx, implicitWait, chromedp.Evaluate(expr, &hit)); err != nil {
		return err
	}
	switch hit {
	case "intercepted":
		return &model.ClickInterceptedError{Selector: sel.Query}
	case "missing":
		return fmt.Errorf("click %s: element not found", sel.Query)
	}
	return d.run(ctx, implicitWait, chromedp.Click(sel.Query, queryOpt(sel), chromedp.NodeVisible))
}

func (d *chromeDriver) ScriptClick(ctx context.Context, sel Selector) error {
	expr := `(() => {
		const el = ` + sel.jsLookup() + `;
		if (!el) return false;
		el.click();
		return true;
	})()`

	var clicked bool
	if err := d.run(ctx, implicitWait, chromedp.Evaluate(expr, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("script click %s: element not found", sel.Query)
	}
	return nil
}

func (d *chromeDriver) WaitSettled(ctx context.Context, timeout time.Duration) error {
	var complete bool
	return d.run(ctx, timeout+time.Second,
		chromedp.Poll(`document.readyState === "complete"`, &complete,
			chromedp.WithPollingInterval(pollInterval), chromedp.WithPollingTimeout(timeout)),
	)
}

func (d *chromeDriver) AwaitAlert(ctx context.Context, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-d.dialogs:
		if res.err != nil {
			return false, fmt.Errorf("accept dialog: %w", res.err)
		}
		d.logger.Info("accepted browser alert", "message", res.message)
		return true, nil
	case <-timer.C:
		return false, errWaitTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (d *chromeDriver) DiscardAlerts() {
	for {
		select {
		case res := <-d.dialogs:
			d.logger.Debug("discarded earlier browser alert", "message", res.message)
		default:
			return
		}
	}
}

func (d *chromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, implicitWait, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *chromeDriver) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, implicitWait, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close closes the browser gracefully and waits for the process to exit.
func (d *chromeDriver) Close() error {
	err := chromedp.Cancel(d.ctx)
	d.cancel()
	d.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
