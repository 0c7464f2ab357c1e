package browser

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
)

// connectTimeout bounds the dial, the websocket handshake and the first CDP
// round trip.
var connectTimeout = 30 * time.Second

// deadlineDialer dials the control endpoint and arms a deadline on the
// connection until dial completes. Ending the dial context expires the
// connection at once, since the handshake reads do not watch it.
type deadlineDialer struct {
	secure   bool
	deadline time.Time
	conn     net.Conn
	stop     func() bool
}

func (d *deadlineDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		port := "80"
		if d.secure {
			port = "443"
		}
		address = net.JoinHostPort(address, port)
	}

	var (
		conn net.Conn
		err  error
	)
	if d.secure {
		conn, err = (&tls.Dialer{}).DialContext(ctx, network, address)
	} else {
		conn, err = (&net.Dialer{}).DialContext(ctx, network, address)
	}
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(d.deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}
	d.conn = conn
	d.stop = context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	return conn, nil
}

// dial opens a CDP connection to controlURL and completes rod's connect
// handshake within connectTimeout or before ctx ends, whichever is first. The
// returned browser is not tied to ctx.
func dial(ctx context.Context, controlURL string) (*rod.Browser, error) {
	u, err := url.Parse(controlURL)
	if err != nil {
		return nil, fmt.Errorf("control url: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	deadline, _ := cctx.Deadline()

	d := &deadlineDialer{secure: u.Scheme == "wss", deadline: deadline}
	ws := &cdp.WebSocket{Dialer: d}
	if err := ws.Connect(cctx, controlURL, nil); err != nil {
		if d.conn != nil {
			d.stop()
			_ = d.conn.Close()
		}
		return nil, dialErr(cctx, err)
	}

	b := rod.New().Client(cdp.New().Start(ws))
	if err := b.Connect(); err != nil {
		d.stop()
		_ = ws.Close()
		return nil, dialErr(cctx, err)
	}
	if !d.stop() {
		_ = ws.Close()
		return nil, cctx.Err()
	}
	if err := d.conn.SetDeadline(time.Time{}); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return b, nil
}

func dialErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}
