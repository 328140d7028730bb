// Package seed provisions the database from two sources: environment
// variables (one ad-hoc tracked route for local/manual use) and the live
// booking site's route and station catalogue.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/scraper"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/storage"
)

const seedUserWebhookEnv = "WEBHOOK_URL"

// FromEnv creates a single user and tracked route from environment
// variables, for operators who want to monitor one route without going
// through any future administrative UI. Every call inserts a new user,
// tracked route and passenger count; existing rows are not looked up or
// updated.
func FromEnv(ctx context.Context, store storage.Storage) error {
	webhookURL := os.Getenv(seedUserWebhookEnv)
	if webhookURL == "" {
		return fmt.Errorf("seed: %s is required when SEED_FROM_ENV is set", seedUserWebhookEnv)
	}

	routeID, err := strconv.Atoi(envOrDefault("ROUTE_ID", ""))
	if err != nil {
		return fmt.Errorf("seed: invalid ROUTE_ID: %w", err)
	}
	areaID, err := strconv.Atoi(envOrDefault("AREA_ID", "1"))
	if err != nil {
		return fmt.Errorf("seed: invalid AREA_ID: %w", err)
	}
	pollSecs, err := strconv.Atoi(envOrDefault("SCRAPE_INTERVAL_SECS", "300"))
	if err != nil {
		return fmt.Errorf("seed: invalid SCRAPE_INTERVAL_SECS: %w", err)
	}

	departureStation := os.Getenv("DEPARTURE_STATION")
	arrivalStation := os.Getenv("ARRIVAL_STATION")
	if departureStation == "" || arrivalStation == "" {
		return fmt.Errorf("seed: DEPARTURE_STATION and ARRIVAL_STATION are required")
	}

	now := time.Now()
	dateStart := envOrDefault("DATE_START", now.Format("2006-01-02"))
	dateEnd := envOrDefault("DATE_END", now.AddDate(0, 0, 7).Format("2006-01-02"))

	passengers, err := passengerCountFromEnv()
	if err != nil {
		return err
	}
	if total := passengers.Total(); total < 1 || total > 12 {
		return fmt.Errorf("seed: passenger total %d out of range [1, 12]", total)
	}

	user := model.User{
		Enabled:            true,
		PollIntervalSecs:   pollSecs,
		WebhookURL:         webhookURL,
		NotifyOnChangeOnly: envOrDefault("NOTIFY_ON_CHANGE_ONLY", "true") == "true",
	}
	if err := store.CreateUser(ctx, &user); err != nil {
		return fmt.Errorf("seed: create user: %w", err)
	}

	route := model.TrackedRoute{
		UserID:             user.ID,
		AreaID:             areaID,
		RouteID:            routeID,
		OriginStation:      departureStation,
		DestinationStation: arrivalStation,
		DateStart:          dateStart,
		DateEnd:            dateEnd,
		DepartureTimeMin:   os.Getenv("DEPARTURE_TIME_MIN"),
		DepartureTimeMax:   os.Getenv("DEPARTURE_TIME_MAX"),
	}
	if err := store.CreateTrackedRoute(ctx, &route); err != nil {
		return fmt.Errorf("seed: create tracked route: %w", err)
	}

	passengers.RouteID = route.ID
	if err := store.CreatePassengerCount(ctx, &passengers); err != nil {
		return fmt.Errorf("seed: create passenger count: %w", err)
	}

	return nil
}

func passengerCountFromEnv() (model.PassengerCount, error) {
	fields := map[string]*int{}
	p := model.PassengerCount{}
	fields["ADULT_MEN"] = &p.AdultMen
	fields["ADULT_WOMEN"] = &p.AdultWomen
	fields["CHILD_MEN"] = &p.ChildMen
	fields["CHILD_WOMEN"] = &p.ChildWomen
	fields["HANDICAP_ADULT_MEN"] = &p.HandicapAdultMen
	fields["HANDICAP_ADULT_WOMEN"] = &p.HandicapAdultWomen
	fields["HANDICAP_CHILD_MEN"] = &p.HandicapChildMen
	fields["HANDICAP_CHILD_WOMEN"] = &p.HandicapChildWomen

	defaults := map[string]int{"ADULT_MEN": 1}
	for key, dst := range fields {
		def := defaults[key]
		raw := envOrDefault(key, strconv.Itoa(def))
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("seed: invalid %s: %w", key, err)
		}
		*dst = v
	}
	return p, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// routeCatalogueScraper is the subset of *scraper.Scraper the catalogue
// seeder needs.
type routeCatalogueScraper interface {
	FetchRoutes(ctx context.Context, areaID int) ([]model.Route, error)
	FetchDepartureStations(ctx context.Context, routeID int) ([]model.Station, error)
	FetchArrivalStations(ctx context.Context, routeID int, originCode string) ([]model.Station, error)
}

// seedAreaIDs is the fixed set of booking-site areas walked when building
// the route/station catalogue. The remote site has no "list all areas"
// endpoint, so this mirrors the single area the original deployment
// tracked.
var seedAreaIDs = []int{1}

// Catalogue fetches every route (and every station reachable on it) from
// the live booking site and upserts them into the catalogue tables. It is
// safe to re-run: existing rows are simply overwritten with fresher data.
func Catalogue(ctx context.Context, store storage.Storage, baseURL string, log *slog.Logger) error {
	sc, err := scraper.New(baseURL)
	if err != nil {
		return fmt.Errorf("seed: create scraper: %w", err)
	}
	return catalogueWith(ctx, store, sc, log)
}

func catalogueWith(ctx context.Context, store storage.Storage, sc routeCatalogueScraper, log *slog.Logger) error {
	for _, areaID := range seedAreaIDs {
		log.Info("fetching routes for area", "area_id", areaID)
		routes, err := sc.FetchRoutes(ctx, areaID)
		if err != nil {
			log.Error("fetch routes", "area_id", areaID, "error", err)
			continue
		}
		log.Info("found routes", "area_id", areaID, "count", len(routes))

		for _, route := range routes {
			if err := seedRoute(ctx, store, sc, route, log); err != nil {
				log.Error("seed route", "route_id", route.ID, "route_name", route.Name, "error", err)
			}
		}
	}

	log.Info("catalogue seeding complete")
	return nil
}

func seedRoute(ctx context.Context, store storage.Storage, sc routeCatalogueScraper, route model.Route, log *slog.Logger) error {
	if err := store.UpsertRoute(ctx, &route); err != nil {
		return fmt.Errorf("upsert route: %w", err)
	}

	routeID, err := strconv.Atoi(route.ID)
	if err != nil {
		return fmt.Errorf("route id %q is not numeric: %w", route.ID, err)
	}

	departures, err := sc.FetchDepartureStations(ctx, routeID)
	if err != nil {
		log.Warn("fetch departure stations", "route_id", route.ID, "error", err)
		return nil
	}
	log.Info("found departure stations", "route_id", route.ID, "count", len(departures))

	seen := make(map[string]model.Station)
	for _, st := range departures {
		seen[st.ID] = st
	}

	for _, departure := range departures {
		arrivals, err := sc.FetchArrivalStations(ctx, routeID, departure.ID)
		if err != nil {
			log.Warn("fetch arrival stations", "route_id", route.ID, "departure", departure.ID, "error", err)
			continue
		}
		for _, st := range arrivals {
			seen[st.ID] = st
		}
	}

	for _, st := range seen {
		st.AreaID = route.AreaID
		st.RouteID = route.ID
		if err := store.UpsertStation(ctx, &st); err != nil {
			log.Error("upsert station", "station_id", st.ID, "error", err)
		}
	}
	log.Info("seeded stations for route", "route_id", route.ID, "count", len(seen))
	return nil
}
