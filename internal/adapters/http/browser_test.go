package web_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/playwright-community/playwright-go"

	web "scoreboard/internal/adapters/http"
	"scoreboard/internal/adapters/http/middleware"
	"scoreboard/internal/adapters/storage/kv"
	"scoreboard/internal/application/ledger"
	"scoreboard/internal/domain/account"
)

// browserApp is a running server plus a headless Chromium.
type browserApp struct {
	BaseURL string
	Ledger  *ledger.Ledger
	Browser playwright.Browser
}

// newBrowserApp starts the app on a random port and launches Playwright.
// Set SCOREBOARD_BROWSER_TESTS=1 to run; the browsers must already be installed.
func newBrowserApp(t *testing.T) *browserApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if os.Getenv("SCOREBOARD_BROWSER_TESTS") != "1" {
		t.Skip("set SCOREBOARD_BROWSER_TESTS=1 to run browser tests")
	}

	base := kv.NewMemoryStore()
	l, err := ledger.Open(context.Background(), base)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	s, err := web.NewServer(web.Options{
		Ledger:   l,
		Sessions: middleware.NewManager(base, account.NewStaticProvider(account.DefaultCredentials()), false),
		CSRFKey:  bytes.Repeat([]byte("b"), 32),
	})
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	srv := httptest.NewServer(s.Handler())

	pw, err := playwright.Run()
	if err != nil {
		srv.Close()
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		srv.Close()
		t.Fatalf("failed to launch browser: %v", err)
	}
	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
	})
	return &browserApp{BaseURL: srv.URL, Ledger: l, Browser: browser}
}

func (a *browserApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

func fill(t *testing.T, page playwright.Page, selector, value string) {
	t.Helper()
	if err := page.Locator(selector).Fill(value); err != nil {
		t.Fatalf("failed to fill %s: %v", selector, err)
	}
}

func click(t *testing.T, page playwright.Page, selector string) {
	t.Helper()
	if err := page.Locator(selector).First().Click(); err != nil {
		t.Fatalf("failed to click %s: %v", selector, err)
	}
}

// TestBrowser_AdminAddsGradeAndTeamSeesIt drives both roles through the UI.
func TestBrowser_AdminAddsGradeAndTeamSeesIt(t *testing.T) {
	app := newBrowserApp(t)
	page := app.newPage(t)

	if _, err := page.Goto(app.BaseURL + "/"); err != nil {
		t.Fatalf("failed to open leaderboard: %v", err)
	}
	click(t, page, "form.admin-entry button")
	fill(t, page, "input[name=username]", "admin")
	fill(t, page, "input[name=password]", "admin2024")
	click(t, page, ".dialog button[type=submit]")
	if err := page.WaitForURL(app.BaseURL + "/admin"); err != nil {
		t.Fatalf("login did not reach admin panel: %v", err)
	}

	if _, err := page.Locator("select[name=team]").SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice("blue"),
	}); err != nil {
		t.Fatalf("failed to pick team: %v", err)
	}
	fill(t, page, "input[name=points]", "10")
	fill(t, page, "textarea[name=comment]", "Shipped the **demo**")
	click(t, page, ".card button[type=submit]")
	if err := page.WaitForURL("**/admin?added=blue"); err != nil {
		t.Fatalf("grade submit did not redirect: %v", err)
	}
	if got := app.Ledger.TeamTotalPoints("blue"); got != 10 {
		t.Fatalf("blue total = %d, want 10", got)
	}

	click(t, page, "nav button.link")
	if err := page.WaitForURL(app.BaseURL + "/"); err != nil {
		t.Fatalf("logout did not return to leaderboard: %v", err)
	}

	// Team Blue is first now; its View button opens a team challenge.
	click(t, page, ".team-row form button")
	fill(t, page, "input[name=username]", "teamblue")
	fill(t, page, "input[name=password]", "bluepass")
	click(t, page, ".dialog button[type=submit]")
	if err := page.WaitForURL(app.BaseURL + "/teams/blue"); err != nil {
		t.Fatalf("team login did not open team page: %v", err)
	}
	text, err := page.Locator(".entries").InnerText()
	if err != nil {
		t.Fatalf("history not rendered: %v", err)
	}
	if want := "demo"; !strings.Contains(text, want) {
		t.Errorf("history = %q, want it to mention %q", text, want)
	}
}
