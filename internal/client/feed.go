package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/feed"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// DefaultHandshakeTimeout bounds the websocket handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// Feed subscribes to the server's change stream over a websocket.
type Feed struct {
	base   *url.URL
	token  string
	dialer *websocket.Dialer
	buffer int
	log    logger.Logger
}

// NewFeed creates a remote change feed for the server at baseURL.
func NewFeed(baseURL, token string, handshakeTimeout time.Duration, buffer int, log logger.Logger) (*Feed, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	return &Feed{
		base:  u,
		token: token,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		buffer: buffer,
		log:    log,
	}, nil
}

// Subscribe dials the feed endpoint. The server scopes the stream to the
// token's identity; filter is applied again on delivery.
//
// A handshake that times out yields a subscription that has already ended
// with a timed_out status. Other dial failures are returned as errors.
func (f *Feed) Subscribe(ctx context.Context, filter domain.Filter) (*feed.Subscription, error) {
	header := http.Header{}
	if f.token != "" {
		header.Set("Authorization", "Bearer "+f.token)
	}

	conn, resp, err := f.dialer.DialContext(ctx, f.endpoint(), header)
	if err != nil {
		if isTimeout(err) {
			sub := feed.NewSubscription(filter, f.buffer, nil)
			sub.Fail(domain.StatusTimedOut)
			return sub, nil
		}
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("failed to open feed: %w", &APIError{Status: resp.StatusCode})
		}
		return nil, fmt.Errorf("failed to open feed: %w", err)
	}

	sub := feed.NewSubscription(filter, f.buffer, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	})
	go f.pump(conn, sub)
	return sub, nil
}

func (f *Feed) pump(conn *websocket.Conn, sub *feed.Subscription) {
	for {
		var fr feed.Frame
		if err := conn.ReadJSON(&fr); err != nil {
			if sub.Closed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sub.Fail(domain.StatusClosed)
				return
			}
			f.log.Debug("Feed read failed", logger.Error(err))
			sub.Fail(domain.StatusErrored)
			return
		}

		switch fr.Type {
		case feed.FrameStatus:
			if fr.Status.Connected() {
				sub.SetStatus(fr.Status)
				continue
			}
			sub.Fail(fr.Status)
			return
		case feed.FrameChange:
			if fr.Change != nil {
				sub.Deliver(*fr.Change)
			}
		default:
			f.log.Debug("Ignoring unknown feed frame", logger.String("type", fr.Type))
		}
	}
}

func (f *Feed) endpoint() string {
	u := f.base.JoinPath("api/bookmarks/feed")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
