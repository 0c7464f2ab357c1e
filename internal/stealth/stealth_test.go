package stealth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsCheckerCachesAndTests(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		fetches.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /checkout\n"))
	}))
	defer srv.Close()

	rc := NewRobotsChecker(srv.Client(), true)
	ctx := context.Background()

	ok, err := rc.Allowed(ctx, "dealscout", srv.URL+"/sale/denim")
	if err != nil || !ok {
		t.Fatalf("sale page: allowed=%v err=%v", ok, err)
	}
	ok, _ = rc.Allowed(ctx, "dealscout", srv.URL+"/checkout/cart")
	if ok {
		t.Error("checkout should be disallowed")
	}
	if fetches.Load() != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", fetches.Load())
	}
}

func TestRobotsCheckerDisabled(t *testing.T) {
	rc := NewRobotsChecker(http.DefaultClient, false)
	ok, err := rc.Allowed(context.Background(), "x", "http://127.0.0.1:1/anything")
	if err != nil || !ok {
		t.Fatalf("disabled checker: allowed=%v err=%v", ok, err)
	}
}

func TestFingerprintPoolRotates(t *testing.T) {
	p := NewFingerprintPool()
	first := p.Next()
	second := p.Next()
	if first.UserAgent == second.UserAgent {
		t.Error("consecutive fingerprints should differ")
	}
	if first.Width == 0 || first.Height == 0 {
		t.Error("fingerprint must carry a viewport")
	}
}

func TestLoadProxyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	body := "# residential\nhttp://u:p@10.0.0.1:8080\n\nsocks5://10.0.0.2:1080\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	providers, err := LoadProxyFile(path)
	if err != nil {
		t.Fatalf("LoadProxyFile: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("got %d providers, want 2", len(providers))
	}
	r := NewProxyRotator(providers)
	if r.Next().URL().Host != "10.0.0.1:8080" || r.Next().URL().Host != "10.0.0.2:1080" {
		t.Error("rotator did not return providers in order")
	}
}

func TestDecodoStickyURL(t *testing.T) {
	d := &DecodoProvider{Username: "me", Password: "pw", Country: "us", Session: "run1"}
	u := d.URL()
	if !strings.Contains(u.User.Username(), "-session-run1") {
		t.Errorf("username %q lacks sticky session", u.User.Username())
	}
	if d.Name() != "decodo-sticky" {
		t.Errorf("Name() = %q", d.Name())
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Minute); err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep ignored cancellation")
	}
	if NewHumanDelay(ProfileNone).Next() != 0 {
		t.Error("none profile should not pause")
	}
}
