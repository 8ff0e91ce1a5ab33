package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/feed"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/session"
)

// BookmarkStore is the record service as seen by handlers.
type BookmarkStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// ChangeFeed opens change subscriptions for websocket clients.
type ChangeFeed interface {
	Subscribe(ctx context.Context, filter domain.Filter) (*feed.Subscription, error)
}

// Sessions verifies and revokes bearer tokens.
type Sessions interface {
	Verify(ctx context.Context, token string) (session.Claims, error)
	Revoke(ctx context.Context, token string) error
}

// Check is a readiness probe for one backing component.
type Check func(ctx context.Context) error

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time // for testing, defaults to time.Now
	AllowedHosts   []string         // Host headers allowed to access /reload
	AllowedCIDRS   []string         // IPs allowed to access readyz/reload endpoints
	TrustProxy     bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Records        BookmarkStore    // authoritative bookmark store
	Feed           ChangeFeed       // change feed for websocket subscribers
	Sessions       Sessions         // bearer token verification
	Checks         map[string]Check // readiness probes by component name
	RequestTimeout time.Duration    // per-request timeout on REST routes
	RateBurst      int              // mutation burst per client
	RatePerMin     int              // mutation refill per client per minute
	WSPingInterval time.Duration    // websocket keepalive period
	WSWriteTimeout time.Duration    // websocket write deadline
	ReloadTrigger  chan struct{}    // Channel to trigger a seed re-import (nil if seeding disabled)
}
