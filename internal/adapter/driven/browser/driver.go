// Package browser implements the BrowserRunner and PortalSession ports by
// driving a Chrome instance over the DevTools protocol.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// errWaitTimeout is returned by driver waits whose condition did not hold
// within the timeout.
var errWaitTimeout = errors.New("wait timed out")

// Selector locates one element. Query is CSS unless XPath is set.
type Selector struct {
	Query string
	XPath bool
}

func (s Selector) String() string {
	return s.Query
}

// jsLookup returns a script expression that evaluates to the element or null.
func (s Selector) jsLookup() string {
	q, _ := json.Marshal(s.Query)
	if s.XPath {
		return "document.evaluate(" + string(q) + ", document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue"
	}
	return "document.querySelector(" + string(q) + ")"
}

// driver is the slice of browser behavior the portal state machine needs.
// One driver owns exactly one browser process.
type driver interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error
	WaitClickable(ctx context.Context, sel Selector, timeout time.Duration) error
	// WaitInvisible succeeds once the element is hidden or absent.
	WaitInvisible(ctx context.Context, sel Selector, timeout time.Duration) error
	// Fill clears the field and types value into it.
	Fill(ctx context.Context, sel Selector, value string) error
	// Click performs a native click. It returns *model.ClickInterceptedError
	// when another element sits on top of the target.
	Click(ctx context.Context, sel Selector) error
	// ScriptClick dispatches a click from page script, bypassing hit testing.
	ScriptClick(ctx context.Context, sel Selector) error
	// WaitSettled waits until the document reports it has finished loading.
	WaitSettled(ctx context.Context, timeout time.Duration) error
	// AwaitAlert waits for a native dialog and accepts it. It reports false
	// with errWaitTimeout when no dialog opened in time.
	AwaitAlert(ctx context.Context, timeout time.Duration) (bool, error)
	// DiscardAlerts forgets dialogs accepted so far, so the next AwaitAlert
	// only reports a dialog opened after this call.
	DiscardAlerts()
	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)
	// Close terminates the browser process and waits for it to exit.
	Close() error
}
