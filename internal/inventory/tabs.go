package inventory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// View is the dashboard layout chosen from the role.
type View string

const (
	ViewLanding View = "landing"
	ViewAdmin   View = "admin"
	ViewSales   View = "sales"
)

// ViewFor picks the dashboard for p. Program volunteers share the admin view.
func ViewFor(p rbac.Principal) View {
	switch p.Role {
	case rbac.RoleSales:
		return ViewSales
	case rbac.RoleEarnABike, rbac.RoleGiveABike, rbac.RoleAdmin:
		return ViewAdmin
	default:
		return ViewLanding
	}
}

// Tab is one dashboard table.
type Tab string

const (
	TabOnHand  Tab = "on-hand"
	TabTrashed Tab = "trashed"
	TabOut     Tab = "out"
	TabEarned  Tab = "earned"
	TabStrip   Tab = "strip"
	TabDonors  Tab = "donors"
	TabSearch  Tab = "search"
)

// Label is the tab caption.
func (t Tab) Label() string {
	switch t {
	case TabOnHand:
		return "On Hand"
	case TabTrashed:
		return "Trashed"
	case TabOut:
		return "Out"
	case TabEarned:
		return "Earned"
	case TabStrip:
		return "Strip"
	case TabDonors:
		return "Donor Search"
	case TabSearch:
		return "Search"
	default:
		return string(t)
	}
}

// Filters returns the query behind a bike tab.
func (t Tab) Filters() Filters {
	switch t {
	case TabOnHand:
		return Filters{Status: StatusInStock}
	case TabTrashed:
		return Filters{Status: StatusTrashed}
	case TabOut:
		return Filters{StatusNotIn: []Status{StatusInStock, StatusTrashed, StatusStrip}}
	case TabEarned:
		return Filters{Status: StatusEarned}
	case TabStrip:
		return Filters{Status: StatusStrip}
	default:
		return Filters{}
	}
}

// Tabs lists the tabs of the view in display order.
func (v View) Tabs() []Tab {
	switch v {
	case ViewSales:
		return []Tab{TabOnHand, TabTrashed, TabEarned, TabStrip, TabSearch}
	case ViewAdmin:
		return []Tab{TabOnHand, TabTrashed, TabOut, TabStrip, TabDonors}
	default:
		return nil
	}
}

// Has reports whether t belongs to the view.
func (v View) Has(t Tab) bool {
	for _, tab := range v.Tabs() {
		if tab == t {
			return true
		}
	}
	return false
}

// Metric is one dashboard counter tile.
type Metric struct {
	Key   string
	Label string
	Value int
}

// Metrics picks the counters shown by the view.
func (v View) Metrics(c Counts) []Metric {
	switch v {
	case ViewSales:
		return []Metric{{"onHand", "On Hand", c.OnHand}, {"earned", "Earned", c.Earned}, {"total", "Total", c.Total}}
	case ViewAdmin:
		return []Metric{{"onHand", "On Hand", c.OnHand}, {"out", "Out", c.Out}, {"total", "Total", c.Total}}
	default:
		return nil
	}
}

const activeTabKey = "dashboard.tab"

// ActiveTab returns the tab last opened in the session, or the first tab.
func ActiveTab(sess *shared.Session, v View) Tab {
	if sess != nil {
		if t := Tab(sess.Get(activeTabKey)); v.Has(t) {
			return t
		}
	}
	tabs := v.Tabs()
	if len(tabs) == 0 {
		return ""
	}
	return tabs[0]
}

// SetActiveTab remembers the open tab.
func SetActiveTab(sess *shared.Session, t Tab) {
	if sess != nil {
		sess.Set(activeTabKey, string(t))
	}
}

// advanceScript stores ARGV[1] unless a higher generation is already stored.
var advanceScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local gen = tonumber(ARGV[1])
if gen < current then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
return 1
`)

// Generations tracks the newest table fetch per session so that a slow
// response for an abandoned tab is never shown.
type Generations struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGenerations builds the tracker. A nil client accepts every fetch.
func NewGenerations(client *redis.Client, ttl time.Duration) *Generations {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Generations{client: client, ttl: ttl}
}

func (g *Generations) key(sessionID string) string {
	return "biketrack:fetchgen:" + sessionID
}

// Begin records gen as the newest fetch. It fails with ErrStaleGeneration
// when a newer fetch was already seen.
func (g *Generations) Begin(ctx context.Context, sessionID string, gen uint64) error {
	if g == nil || g.client == nil || sessionID == "" {
		return nil
	}
	ok, err := advanceScript.Run(ctx, g.client, []string{g.key(sessionID)}, strconv.FormatUint(gen, 10), int(g.ttl.Seconds())).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrStaleGeneration
	}
	return nil
}

// Current checks that gen is still the newest fetch once the query returns.
func (g *Generations) Current(ctx context.Context, sessionID string, gen uint64) error {
	if g == nil || g.client == nil || sessionID == "" {
		return nil
	}
	raw, err := g.client.Get(ctx, g.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	latest, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return err
	}
	if latest > gen {
		return ErrStaleGeneration
	}
	return nil
}
