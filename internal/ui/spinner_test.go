package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerShowsLatestMessage(t *testing.T) {
	var out syncBuffer
	s := NewSpinner(&out)
	s.Start("starting")
	s.Update("aritzia: extracting")

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "aritzia: extracting") {
		if time.Now().After(deadline) {
			t.Fatalf("spinner never rendered update, got %q", out.String())
		}
		time.Sleep(20 * time.Millisecond)
	}

	s.Stop()
	s.Stop()
	if !strings.HasSuffix(out.String(), "\r\033[K") {
		t.Errorf("line not cleared: %q", out.String())
	}
}
