package stealth

import (
	"net/http"
	"sync"
)

// Fingerprint is a consistent browser identity: the UA string, the platform it
// claims, the window it renders in and the headers an HTTP client should send
// alongside it.
type Fingerprint struct {
	UserAgent string
	Platform  string
	Browser   string
	Width     int
	Height    int
	Locale    string
	Headers   http.Header
}

// FingerprintPool hands out identities round-robin.
type FingerprintPool struct {
	fingerprints []Fingerprint
	mu           sync.Mutex
	idx          int
}

// NewFingerprintPool creates a pool of desktop identities matching US
// storefront traffic.
func NewFingerprintPool() *FingerprintPool {
	return &FingerprintPool{fingerprints: desktopFingerprints()}
}

// Next returns the next fingerprint in round-robin order.
func (fp *FingerprintPool) Next() Fingerprint {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	f := fp.fingerprints[fp.idx%len(fp.fingerprints)]
	fp.idx++
	return f
}

func desktopFingerprints() []Fingerprint {
	return []Fingerprint{
		desktop("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
			"macos", "chrome", 1440, 900, chromeHeaders("138", "macOS")),
		desktop("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
			"windows", "chrome", 1920, 1080, chromeHeaders("138", "Windows")),
		desktop("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36 Edg/138.0.0.0",
			"windows", "edge", 1536, 864, chromeHeaders("138", "Windows")),
		desktop("Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:140.0) Gecko/20100101 Firefox/140.0",
			"macos", "firefox", 1680, 1050, firefoxHeaders()),
	}
}

func desktop(ua, platform, browser string, w, h int, headers http.Header) Fingerprint {
	return Fingerprint{
		UserAgent: ua,
		Platform:  platform,
		Browser:   browser,
		Width:     w,
		Height:    h,
		Locale:    "en-US",
		Headers:   headers,
	}
}

func chromeHeaders(version, platform string) http.Header {
	h := http.Header{}
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Sec-Ch-Ua", `"Chromium";v="`+version+`", "Not)A;Brand";v="8", "Google Chrome";v="`+version+`"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"`+platform+`"`)
	return h
}

func firefoxHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept-Language", "en-US,en;q=0.5")
	return h
}
