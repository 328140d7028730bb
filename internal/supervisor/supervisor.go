// Package supervisor wires the tracker, scraper, storage, and notifier
// together, spawning one tracker per active user route and shutting every
// one of them down together when the process is asked to stop.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/dateutil"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/notifier"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/scraper"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/storage"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/tracker"
)

const (
	minPassengers = 1
	maxPassengers = 12
)

// shutdownDrain bounds how long Run waits for in-flight trackers to notice
// ctx cancellation and return before giving up.
const shutdownDrain = 30 * time.Second

// Store is the subset of storage.Storage the supervisor and its trackers need.
type Store interface {
	tracker.Store
	ListActiveUserRoutes(ctx context.Context) ([]storage.UserRoute, error)
	GetStationName(ctx context.Context, stationID string) (string, bool, error)
}

// Scraper is the subset of *scraper.Scraper the supervisor and its trackers need.
type Scraper interface {
	tracker.Scraper
}

// Notifier is the subset of *notifier.Notifier the supervisor and its trackers need.
type Notifier interface {
	tracker.Notifier
	SendStartup(ctx context.Context, webhookURL string, userCount, routeCount int) error
}

// Supervisor loads every active user route at startup and runs one tracker
// goroutine per route until the process is stopped.
type Supervisor struct {
	store    Store
	scraper  Scraper
	notifier Notifier
	log      *slog.Logger
}

// New creates a Supervisor backed by store and talking to baseURL.
func New(store storage.Storage, baseURL string, log *slog.Logger) (*Supervisor, error) {
	sc, err := scraper.New(baseURL)
	if err != nil {
		return nil, fmt.Errorf("supervisor: create scraper: %w", err)
	}
	return &Supervisor{
		store:    store,
		scraper:  sc,
		notifier: notifier.New(http.DefaultClient),
		log:      log,
	}, nil
}

// Run loads active user routes, builds the shared station cache, sends a
// startup notification to every distinct webhook, and spawns one tracker
// per route. It blocks until ctx is cancelled, then waits up to
// shutdownDrain for every tracker to return before returning itself.
func (s *Supervisor) Run(ctx context.Context) error {
	userRoutes, err := s.store.ListActiveUserRoutes(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: list active user routes: %w", err)
	}

	userRoutes = s.validRoutes(ctx, userRoutes)

	if len(userRoutes) == 0 {
		s.log.Warn("no active user routes found")
		return nil
	}

	s.log.Info("starting tracking", "route_count", len(userRoutes))

	stations := s.buildStationCache(ctx, userRoutes)
	s.log.Info("station cache built", "entries", stations.Len())

	s.sendStartupNotifications(ctx, userRoutes)

	g, gctx := errgroup.WithContext(ctx)
	for _, ur := range userRoutes {
		t := tracker.New(ur, s.scraper, s.store, stations, s.notifier, s.log)
		g.Go(func() error {
			t.Run(gctx)
			return nil
		})
	}

	<-ctx.Done()
	s.log.Info("shutdown requested, waiting for trackers to stop", "timeout", shutdownDrain)

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(shutdownDrain):
		s.log.Warn("trackers did not stop within the drain window")
		return nil
	}
}

// validRoutes filters out tracked routes that fail validation at spawn time,
// logging each rejection with its reason and continuing rather than failing
// the whole supervisor.
func (s *Supervisor) validRoutes(ctx context.Context, userRoutes []storage.UserRoute) []storage.UserRoute {
	valid := make([]storage.UserRoute, 0, len(userRoutes))
	for _, ur := range userRoutes {
		if err := s.validateUserRoute(ctx, ur); err != nil {
			s.log.Error("skipping invalid tracked route", "route_id", ur.Route.ID, "user_id", ur.User.ID, "error", err)
			continue
		}
		valid = append(valid, ur)
	}
	return valid
}

// validateUserRoute checks the configuration invariants that must hold
// before a tracker is spawned for a route: passenger total in range, a
// well-ordered date window, and origin/destination station codes that exist
// in the catalogue.
func (s *Supervisor) validateUserRoute(ctx context.Context, ur storage.UserRoute) error {
	total := ur.Passengers.Total()
	if total < minPassengers || total > maxPassengers {
		return fmt.Errorf("passenger total %d out of range [%d, %d]", total, minPassengers, maxPassengers)
	}

	if _, err := dateutil.Range(ur.Route.DateStart, ur.Route.DateEnd); err != nil {
		return fmt.Errorf("date range: %w", err)
	}

	if _, ok, err := s.store.GetStationName(ctx, ur.Route.OriginStation); err != nil {
		return fmt.Errorf("lookup origin station %q: %w", ur.Route.OriginStation, err)
	} else if !ok {
		return fmt.Errorf("unknown origin station %q", ur.Route.OriginStation)
	}

	if _, ok, err := s.store.GetStationName(ctx, ur.Route.DestinationStation); err != nil {
		return fmt.Errorf("lookup destination station %q: %w", ur.Route.DestinationStation, err)
	} else if !ok {
		return fmt.Errorf("unknown destination station %q", ur.Route.DestinationStation)
	}

	return nil
}

func (s *Supervisor) buildStationCache(ctx context.Context, userRoutes []storage.UserRoute) *tracker.StationCache {
	cache := tracker.NewStationCache()
	seenRoutes := make(map[int]bool)

	for _, ur := range userRoutes {
		if seenRoutes[ur.Route.RouteID] {
			continue
		}
		seenRoutes[ur.Route.RouteID] = true

		stations, err := s.scraper.FetchDepartureStations(ctx, ur.Route.RouteID)
		if err != nil {
			s.log.Warn("failed to cache stations for route", "route_id", ur.Route.RouteID, "error", err)
			continue
		}
		for _, st := range stations {
			cache.Put(st.ID, st.Name)
		}
	}
	return cache
}

func (s *Supervisor) sendStartupNotifications(ctx context.Context, userRoutes []storage.UserRoute) {
	uniqueUsers := make(map[int64]bool)
	uniqueWebhooks := make(map[string]bool)
	for _, ur := range userRoutes {
		uniqueUsers[ur.User.ID] = true
		if ur.User.WebhookURL != "" {
			uniqueWebhooks[ur.User.WebhookURL] = true
		}
	}

	for webhookURL := range uniqueWebhooks {
		if err := s.notifier.SendStartup(ctx, webhookURL, len(uniqueUsers), len(userRoutes)); err != nil {
			s.log.Error("failed to send startup notification", "error", err)
		}
	}
}
