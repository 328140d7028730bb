// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
)

// UserRoute is one (user, tracked route, passenger count) tuple, the shape
// the supervisor needs to spawn a tracker task.
type UserRoute struct {
	User       model.User
	Route      model.TrackedRoute
	Passengers model.PassengerCount
}

// Storage is the interface for all persistence operations. Access is
// serialised by the underlying store; a single-writer embedded database
// is sufficient since every RouteState update is already serialised by
// the fact that only one tracker owns a given route.
type Storage interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)

	CreateTrackedRoute(ctx context.Context, r *model.TrackedRoute) error
	GetTrackedRoute(ctx context.Context, id int64) (*model.TrackedRoute, error)

	CreatePassengerCount(ctx context.Context, p *model.PassengerCount) error
	GetPassengerCount(ctx context.Context, routeID int64) (*model.PassengerCount, error)

	// ListActiveUserRoutes loads every tracked route belonging to an
	// enabled user, with its passenger count, in a single query.
	ListActiveUserRoutes(ctx context.Context) ([]UserRoute, error)

	GetRouteState(ctx context.Context, routeID int64) (*model.RouteState, error)
	// SaveRouteState creates or updates the route's state row atomically,
	// incrementing TotalChecks (and TotalAlerts when incrementAlert is
	// true) relative to whatever is currently persisted.
	SaveRouteState(ctx context.Context, routeID int64, hash string, incrementAlert bool) (*model.RouteState, error)

	UpsertRoute(ctx context.Context, r *model.Route) error
	UpsertStation(ctx context.Context, s *model.Station) error
	GetStationName(ctx context.Context, stationID string) (string, bool, error)
	ListRoutes(ctx context.Context) ([]model.Route, error)
	ListStations(ctx context.Context) ([]model.Station, error)

	Close() error
}
