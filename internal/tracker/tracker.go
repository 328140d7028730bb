// Package tracker runs one polling loop per tracked route: scrape, detect
// change, and notify.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/dateutil"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/fingerprint"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/notifier"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/storage"
)

// Scraper is the subset of *scraper.Scraper a tracker needs.
type Scraper interface {
	CheckAvailability(ctx context.Context, req model.ScrapeRequest) ([]model.BusSchedule, error)
	FetchDepartureStations(ctx context.Context, routeID int) ([]model.Station, error)
}

// Notifier is the subset of *notifier.Notifier a tracker needs.
type Notifier interface {
	SendAvailabilityAlert(ctx context.Context, webhookURL string, schedules []model.BusSchedule, nctx notifier.Context) error
}

// Store is the subset of storage.Storage a tracker needs to read and
// persist route state.
type Store interface {
	GetRouteState(ctx context.Context, routeID int64) (*model.RouteState, error)
	SaveRouteState(ctx context.Context, routeID int64, hash string, incrementAlert bool) (*model.RouteState, error)
}

// StationCache resolves station codes to display names, shared read-only
// across every tracker once built by the supervisor at startup.
type StationCache struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewStationCache returns an empty cache ready to be populated.
func NewStationCache() *StationCache {
	return &StationCache{names: make(map[string]string)}
}

// Put records a station's display name.
func (c *StationCache) Put(stationID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[stationID] = name
}

// Name returns the display name for a station, falling back to
// "Station <id>" when the cache has no entry.
func (c *StationCache) Name(stationID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.names[stationID]; ok {
		return name
	}
	return fmt.Sprintf("Station %s", stationID)
}

// Len reports the number of cached station names.
func (c *StationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Tracker polls a single user's tracked route on its own interval.
type Tracker struct {
	userRoute storage.UserRoute
	scraper   Scraper
	store     Store
	stations  *StationCache
	notifier  Notifier
	log       *slog.Logger
}

// New creates a Tracker for one user route.
func New(userRoute storage.UserRoute, scraper Scraper, store Store, stations *StationCache, n Notifier, log *slog.Logger) *Tracker {
	return &Tracker{
		userRoute: userRoute,
		scraper:   scraper,
		store:     store,
		stations:  stations,
		notifier:  n,
		log:       log.With("route_id", userRoute.Route.ID, "user_id", userRoute.User.ID),
	}
}

// Run blocks, ticking on the route's configured poll interval until ctx is
// cancelled. A tick that is still running when the next one would fire is
// simply skipped -- no catch-up burst once a slow interrogation returns.
func (t *Tracker) Run(ctx context.Context) {
	interval := time.Duration(t.userRoute.User.PollIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.log.Info("tracker started", "poll_interval", interval)

	for {
		select {
		case <-ctx.Done():
			t.log.Info("tracker stopped")
			return
		case <-ticker.C:
			if err := t.checkAndNotify(ctx); err != nil {
				t.log.Error("check and notify", "error", err)
			}
		}
	}
}

func (t *Tracker) checkAndNotify(ctx context.Context) error {
	req := t.buildScrapeRequest()

	schedules, err := t.scraper.CheckAvailability(ctx, req)
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}

	currentHash := fingerprint.Format(fingerprint.Compute(schedules))

	state, err := t.store.GetRouteState(ctx, t.userRoute.Route.ID)
	if err != nil {
		return fmt.Errorf("get route state: %w", err)
	}

	var lastHash *string
	if state != nil {
		lastHash = &state.LastSeenHash
	}
	changed := stateChanged(lastHash, currentHash)
	notify := shouldNotify(t.userRoute.User.NotifyOnChangeOnly, changed)

	withSeats := schedulesWithSeats(schedules)
	if len(schedules) > 0 && len(withSeats) == 0 {
		t.log.Debug("buses found but no seats available", "schedule_count", len(schedules))
	}

	if notify {
		t.log.Info("sending availability alert", "schedule_count", len(withSeats))

		nctx := t.buildNotificationContext()
		if err := t.notifier.SendAvailabilityAlert(ctx, t.userRoute.User.WebhookURL, withSeats, nctx); err != nil {
			return fmt.Errorf("send availability alert: %w", err)
		}
	}

	if _, err := t.store.SaveRouteState(ctx, t.userRoute.Route.ID, currentHash, notify); err != nil {
		return fmt.Errorf("save route state: %w", err)
	}
	return nil
}

func (t *Tracker) buildScrapeRequest() model.ScrapeRequest {
	r := t.userRoute.Route
	var tf *model.TimeFilter
	if r.DepartureTimeMin != "" || r.DepartureTimeMax != "" {
		tf = &model.TimeFilter{Min: r.DepartureTimeMin, Max: r.DepartureTimeMax}
	}
	return model.ScrapeRequest{
		AreaID:           r.AreaID,
		RouteID:          r.RouteID,
		DepartureStation: r.OriginStation,
		ArrivalStation:   r.DestinationStation,
		DateStart:        r.DateStart,
		DateEnd:          r.DateEnd,
		Passengers:       t.userRoute.Passengers,
		TimeFilter:       tf,
	}
}

func (t *Tracker) buildNotificationContext() notifier.Context {
	r := t.userRoute.Route
	var tf *model.TimeFilter
	if r.DepartureTimeMin != "" && r.DepartureTimeMax != "" {
		tf = &model.TimeFilter{Min: r.DepartureTimeMin, Max: r.DepartureTimeMax}
	}
	return notifier.Context{
		DepartureStationName: t.stations.Name(r.OriginStation),
		ArrivalStationName:   t.stations.Name(r.DestinationStation),
		DateStart:            compactDate(r.DateStart),
		DateEnd:              compactDate(r.DateEnd),
		PassengerCount:       t.userRoute.Passengers.Total(),
		TimeFilter:           tf,
	}
}

// compactDate converts a YYYY-MM-DD or YYYYMMDD date to YYYYMMDD, returning
// the input unchanged if it parses as neither.
func compactDate(s string) string {
	d, err := dateutil.ParseFlexible(s)
	if err != nil {
		return s
	}
	return dateutil.Compact(d)
}
