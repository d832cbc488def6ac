package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

const testPage = `<!doctype html>
<html>
<body>
  <button id="covered" style="position:absolute;left:10px;top:10px;width:120px;height:40px"
    onclick="document.getElementById('out').textContent='covered'">Clock in</button>
  <div id="shield" style="position:absolute;left:0;top:0;width:300px;height:80px;z-index:10"></div>

  <button id="open" style="position:absolute;left:10px;top:120px"
    onclick="document.getElementById('out').textContent='open'">Clock out</button>
  <button id="confirm" style="position:absolute;left:10px;top:160px"
    onclick="setTimeout(() => alert('Punch recorded'), 0)">Confirm</button>

  <div id="out" style="position:absolute;left:10px;top:200px"></div>
  <div id="notification_content" style="position:absolute;left:10px;top:240px">Saving</div>
  <div id="banner" style="position:absolute;left:10px;top:280px">Welcome</div>
  <script>
    setTimeout(() => { document.getElementById('notification_content').style.display = 'none'; }, 300);
  </script>
</body>
</html>`

// chromePath finds a local Chrome or skips the test.
func chromePath(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in short mode")
	}
	if p := os.Getenv("AUTOPUNCH_CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("chrome not found on PATH")
	return ""
}

func openTestPage(t *testing.T) *chromeDriver {
	t.Helper()
	execPath := chromePath(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	}))
	t.Cleanup(srv.Close)

	d, err := launchChrome(context.Background(), execPath, true, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	require.NoError(t, d.Navigate(ctx, srv.URL))
	require.NoError(t, d.WaitVisible(ctx, Selector{Query: "#banner"}, 5*time.Second))
	return d
}

func outText(t *testing.T, d *chromeDriver) string {
	t.Helper()
	var text string
	require.NoError(t, d.run(context.Background(), 5*time.Second,
		chromedp.TextContent("#out", &text, chromedp.ByQuery)))
	return text
}

func TestChromeDriver_ClickReachesTarget(t *testing.T) {
	d := openTestPage(t)

	require.NoError(t, d.Click(context.Background(), Selector{Query: "#open"}))

	assert.Equal(t, "open", outText(t, d))
}

func TestChromeDriver_ClickInterceptedByOverlay(t *testing.T) {
	d := openTestPage(t)
	sel := Selector{Query: "#covered"}

	err := d.Click(context.Background(), sel)

	var intercepted *model.ClickInterceptedError
	require.True(t, errors.As(err, &intercepted), "got %v", err)
	assert.Equal(t, "#covered", intercepted.Selector)
	assert.Empty(t, outText(t, d))

	require.NoError(t, d.ScriptClick(context.Background(), sel))
	assert.Equal(t, "covered", outText(t, d))
}

func TestChromeDriver_ClickByXPath(t *testing.T) {
	d := openTestPage(t)

	require.NoError(t, d.Click(context.Background(), Selector{Query: "//button[text()='Clock out']", XPath: true}))

	assert.Equal(t, "open", outText(t, d))
}

func TestChromeDriver_ClickMissingElement(t *testing.T) {
	d := openTestPage(t)

	err := d.Click(context.Background(), Selector{Query: "#nowhere"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "element not found")
}

func TestChromeDriver_WaitInvisible(t *testing.T) {
	d := openTestPage(t)
	ctx := context.Background()

	assert.NoError(t, d.WaitInvisible(ctx, Selector{Query: "#notification_content"}, 5*time.Second))
	assert.NoError(t, d.WaitInvisible(ctx, Selector{Query: "#nowhere"}, time.Second))

	err := d.WaitInvisible(ctx, Selector{Query: "#banner"}, 500*time.Millisecond)
	assert.ErrorIs(t, err, errWaitTimeout)
}

func TestChromeDriver_AwaitAlert(t *testing.T) {
	d := openTestPage(t)
	ctx := context.Background()

	require.NoError(t, d.ScriptClick(ctx, Selector{Query: "#confirm"}))

	accepted, err := d.AwaitAlert(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestChromeDriver_DiscardAlertsDropsEarlierDialog(t *testing.T) {
	d := openTestPage(t)
	ctx := context.Background()

	require.NoError(t, d.ScriptClick(ctx, Selector{Query: "#confirm"}))
	require.Eventually(t, func() bool { return len(d.dialogs) == 1 }, 5*time.Second, 50*time.Millisecond)

	d.DiscardAlerts()

	accepted, err := d.AwaitAlert(ctx, 300*time.Millisecond)
	assert.ErrorIs(t, err, errWaitTimeout)
	assert.False(t, accepted)
}
