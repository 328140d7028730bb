package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
)

var ignoreUserTS = cmpopts.IgnoreFields(model.User{}, "CreatedAt")
var ignoreRouteTS = cmpopts.IgnoreFields(model.TrackedRoute{}, "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreateUser(t *testing.T, ctx context.Context, s *SQLite, webhook string) model.User {
	t.Helper()
	u := model.User{Enabled: true, PollIntervalSecs: 300, WebhookURL: webhook, NotifyOnChangeOnly: true}
	if err := s.CreateUser(ctx, &u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUserCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	u := model.User{Enabled: true, PollIntervalSecs: 600, WebhookURL: "https://hooks.example/abc", NotifyOnChangeOnly: false}
	if err := s.CreateUser(ctx, &u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(u, *got, ignoreUserTS); diff != "" {
		t.Errorf("GetUser mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackedRouteCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	u := mustCreateUser(t, ctx, s, "https://hooks.example/r")

	tests := []struct {
		name  string
		route model.TrackedRoute
	}{
		{
			name: "with time window",
			route: model.TrackedRoute{
				UserID: u.ID, AreaID: 1, RouteID: 42,
				OriginStation: "0001", DestinationStation: "0099",
				DateStart: "2026-08-10", DateEnd: "2026-08-12",
				DepartureTimeMin: "08:00", DepartureTimeMax: "12:00",
			},
		},
		{
			name: "unbounded time window",
			route: model.TrackedRoute{
				UserID: u.ID, AreaID: 1, RouteID: 43,
				OriginStation: "0002", DestinationStation: "0100",
				DateStart: "2026-08-10", DateEnd: "2026-08-10",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.route
			if err := s.CreateTrackedRoute(ctx, &r); err != nil {
				t.Fatalf("create: %v", err)
			}
			if r.ID == 0 {
				t.Fatal("expected non-zero ID")
			}

			got, err := s.GetTrackedRoute(ctx, r.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			want := tt.route
			want.ID = r.ID
			if diff := cmp.Diff(want, *got, ignoreRouteTS); diff != "" {
				t.Errorf("GetTrackedRoute mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPassengerCountCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	u := mustCreateUser(t, ctx, s, "https://hooks.example/p")
	r := model.TrackedRoute{UserID: u.ID, AreaID: 1, RouteID: 1, OriginStation: "a", DestinationStation: "b", DateStart: "2026-08-01", DateEnd: "2026-08-01"}
	if err := s.CreateTrackedRoute(ctx, &r); err != nil {
		t.Fatalf("create route: %v", err)
	}

	p := model.PassengerCount{RouteID: r.ID, AdultMen: 2, AdultWomen: 1, ChildMen: 1, HandicapAdultWomen: 1}
	if err := s.CreatePassengerCount(ctx, &p); err != nil {
		t.Fatalf("create passenger count: %v", err)
	}

	got, err := s.GetPassengerCount(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(p, *got); diff != "" {
		t.Errorf("GetPassengerCount mismatch (-want +got):\n%s", diff)
	}
	if got.TotalMale() != 3 {
		t.Errorf("TotalMale() = %d, want 3", got.TotalMale())
	}
	if got.TotalFemale() != 2 {
		t.Errorf("TotalFemale() = %d, want 2", got.TotalFemale())
	}
	if got.Total() != 5 {
		t.Errorf("Total() = %d, want 5", got.Total())
	}
}

func TestListActiveUserRoutes(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	active := mustCreateUser(t, ctx, s, "https://hooks.example/active")
	inactiveUser := model.User{Enabled: false, PollIntervalSecs: 300, WebhookURL: "https://hooks.example/off"}
	if err := s.CreateUser(ctx, &inactiveUser); err != nil {
		t.Fatalf("create inactive user: %v", err)
	}

	r1 := model.TrackedRoute{UserID: active.ID, AreaID: 1, RouteID: 1, OriginStation: "a", DestinationStation: "b", DateStart: "2026-08-01", DateEnd: "2026-08-01"}
	if err := s.CreateTrackedRoute(ctx, &r1); err != nil {
		t.Fatalf("create route 1: %v", err)
	}
	p1 := model.PassengerCount{RouteID: r1.ID, AdultMen: 1}
	if err := s.CreatePassengerCount(ctx, &p1); err != nil {
		t.Fatalf("create passenger count 1: %v", err)
	}

	r2 := model.TrackedRoute{UserID: inactiveUser.ID, AreaID: 1, RouteID: 2, OriginStation: "c", DestinationStation: "d", DateStart: "2026-08-01", DateEnd: "2026-08-01"}
	if err := s.CreateTrackedRoute(ctx, &r2); err != nil {
		t.Fatalf("create route 2: %v", err)
	}
	p2 := model.PassengerCount{RouteID: r2.ID, AdultMen: 1}
	if err := s.CreatePassengerCount(ctx, &p2); err != nil {
		t.Fatalf("create passenger count 2: %v", err)
	}

	got, err := s.ListActiveUserRoutes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 active user route, got %d", len(got))
	}
	if got[0].Route.ID != r1.ID {
		t.Errorf("expected route %d, got %d", r1.ID, got[0].Route.ID)
	}
	if got[0].User.ID != active.ID {
		t.Errorf("expected user %d, got %d", active.ID, got[0].User.ID)
	}
}

func TestRouteStateLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	u := mustCreateUser(t, ctx, s, "https://hooks.example/state")
	r := model.TrackedRoute{UserID: u.ID, AreaID: 1, RouteID: 1, OriginStation: "a", DestinationStation: "b", DateStart: "2026-08-01", DateEnd: "2026-08-01"}
	if err := s.CreateTrackedRoute(ctx, &r); err != nil {
		t.Fatalf("create route: %v", err)
	}

	if got, err := s.GetRouteState(ctx, r.ID); err != nil {
		t.Fatalf("get before first save: %v", err)
	} else if got != nil {
		t.Fatalf("expected nil state before first save, got %+v", got)
	}

	st, err := s.SaveRouteState(ctx, r.ID, "1111", true)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if st.TotalChecks != 1 || st.TotalAlerts != 1 {
		t.Errorf("first save counters = %+v, want checks=1 alerts=1", st)
	}
	if st.LastSeenHash != "1111" {
		t.Errorf("LastSeenHash = %q, want 1111", st.LastSeenHash)
	}

	st, err = s.SaveRouteState(ctx, r.ID, "1111", false)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if st.TotalChecks != 2 || st.TotalAlerts != 1 {
		t.Errorf("second save counters = %+v, want checks=2 alerts=1", st)
	}

	st, err = s.SaveRouteState(ctx, r.ID, "2222", true)
	if err != nil {
		t.Fatalf("third save: %v", err)
	}
	if st.TotalChecks != 3 || st.TotalAlerts != 2 {
		t.Errorf("third save counters = %+v, want checks=3 alerts=2", st)
	}
	if st.LastSeenHash != "2222" {
		t.Errorf("LastSeenHash = %q, want 2222", st.LastSeenHash)
	}

	got, err := s.GetRouteState(ctx, r.ID)
	if err != nil {
		t.Fatalf("final get: %v", err)
	}
	if got.TotalChecks != 3 || got.TotalAlerts != 2 || got.LastSeenHash != "2222" {
		t.Errorf("final state = %+v", got)
	}
	if got.LastCheck == nil {
		t.Error("expected LastCheck to be set")
	}
}

func TestRouteAndStationCatalogue(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	r := model.Route{ID: "101", AreaID: 1, Name: "Tokyo - Osaka", ChangeFlag: "1"}
	if err := s.UpsertRoute(ctx, &r); err != nil {
		t.Fatalf("upsert route: %v", err)
	}
	st := model.Station{ID: "0001", Name: "Tokyo Station", AreaID: 1, RouteID: "101"}
	if err := s.UpsertStation(ctx, &st); err != nil {
		t.Fatalf("upsert station: %v", err)
	}

	name, ok, err := s.GetStationName(ctx, "0001")
	if err != nil {
		t.Fatalf("get station name: %v", err)
	}
	if !ok || name != "Tokyo Station" {
		t.Errorf("GetStationName = (%q, %v), want (Tokyo Station, true)", name, ok)
	}

	_, ok, err = s.GetStationName(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("get missing station name: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing station")
	}

	r.Name = "Tokyo - Osaka (renamed)"
	if err := s.UpsertRoute(ctx, &r); err != nil {
		t.Fatalf("re-upsert route: %v", err)
	}
	routes, err := s.ListRoutes(ctx)
	if err != nil {
		t.Fatalf("list routes: %v", err)
	}
	if len(routes) != 1 || routes[0].Name != "Tokyo - Osaka (renamed)" {
		t.Errorf("ListRoutes = %+v, want one renamed route", routes)
	}

	stations, err := s.ListStations(ctx)
	if err != nil {
		t.Fatalf("list stations: %v", err)
	}
	if len(stations) != 1 || stations[0].ID != "0001" {
		t.Errorf("ListStations = %+v, want one station 0001", stations)
	}
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*SQLite)(nil)
