package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
	"github.com/florian-trehaut/bus-availabilities-scraper/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user and populates its ID and CreatedAt.
func (s *SQLite) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (enabled, poll_interval_secs, webhook_url, notify_on_change_only, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		boolToInt(u.Enabled), u.PollIntervalSecs, u.WebhookURL, boolToInt(u.NotifyOnChangeOnly), now,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetUser returns a single user by its ID.
func (s *SQLite) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, enabled, poll_interval_secs, webhook_url, notify_on_change_only, created_at
		 FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

// CreateTrackedRoute inserts a new tracked route and populates its ID and CreatedAt.
func (s *SQLite) CreateTrackedRoute(ctx context.Context, r *model.TrackedRoute) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_routes
		   (user_id, area_id, route_id, origin_station, destination_station,
		    date_start, date_end, departure_time_min, departure_time_max, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.AreaID, r.RouteID, r.OriginStation, r.DestinationStation,
		r.DateStart, r.DateEnd, nullableString(r.DepartureTimeMin), nullableString(r.DepartureTimeMax), now,
	)
	if err != nil {
		return fmt.Errorf("insert tracked route: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetTrackedRoute returns a single tracked route by its ID.
func (s *SQLite) GetTrackedRoute(ctx context.Context, id int64) (*model.TrackedRoute, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, area_id, route_id, origin_station, destination_station,
		        date_start, date_end, departure_time_min, departure_time_max, created_at
		 FROM tracked_routes WHERE id = ?`, id,
	)
	return scanTrackedRoute(row)
}

// CreatePassengerCount inserts the passenger breakdown for a tracked route.
func (s *SQLite) CreatePassengerCount(ctx context.Context, p *model.PassengerCount) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO passenger_counts
		   (route_id, adult_men, adult_women, child_men, child_women,
		    handicap_adult_men, handicap_adult_women, handicap_child_men, handicap_child_women)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RouteID, p.AdultMen, p.AdultWomen, p.ChildMen, p.ChildWomen,
		p.HandicapAdultMen, p.HandicapAdultWomen, p.HandicapChildMen, p.HandicapChildWomen,
	)
	if err != nil {
		return fmt.Errorf("insert passenger count: %w", err)
	}
	return nil
}

// GetPassengerCount returns the passenger breakdown for a tracked route.
func (s *SQLite) GetPassengerCount(ctx context.Context, routeID int64) (*model.PassengerCount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT route_id, adult_men, adult_women, child_men, child_women,
		        handicap_adult_men, handicap_adult_women, handicap_child_men, handicap_child_women
		 FROM passenger_counts WHERE route_id = ?`, routeID,
	)
	return scanPassengerCount(row)
}

// ListActiveUserRoutes loads every tracked route belonging to an enabled
// user, with its passenger count, in a single joined query.
func (s *SQLite) ListActiveUserRoutes(ctx context.Context) ([]UserRoute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
		  u.id, u.enabled, u.poll_interval_secs, u.webhook_url, u.notify_on_change_only, u.created_at,
		  r.id, r.user_id, r.area_id, r.route_id, r.origin_station, r.destination_station,
		  r.date_start, r.date_end, r.departure_time_min, r.departure_time_max, r.created_at,
		  p.route_id, p.adult_men, p.adult_women, p.child_men, p.child_women,
		  p.handicap_adult_men, p.handicap_adult_women, p.handicap_child_men, p.handicap_child_women
		FROM users u
		JOIN tracked_routes r ON r.user_id = u.id
		JOIN passenger_counts p ON p.route_id = r.id
		WHERE u.enabled = 1
		ORDER BY u.id, r.id`)
	if err != nil {
		return nil, fmt.Errorf("query active user routes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []UserRoute
	for rows.Next() {
		var (
			u                                model.User
			enabledInt, notifyInt            int
			userCreated                      string
			r                                model.TrackedRoute
			depMin, depMax                   sql.NullString
			routeCreated                     string
			p                                model.PassengerCount
		)
		err := rows.Scan(
			&u.ID, &enabledInt, &u.PollIntervalSecs, &u.WebhookURL, &notifyInt, &userCreated,
			&r.ID, &r.UserID, &r.AreaID, &r.RouteID, &r.OriginStation, &r.DestinationStation,
			&r.DateStart, &r.DateEnd, &depMin, &depMax, &routeCreated,
			&p.RouteID, &p.AdultMen, &p.AdultWomen, &p.ChildMen, &p.ChildWomen,
			&p.HandicapAdultMen, &p.HandicapAdultWomen, &p.HandicapChildMen, &p.HandicapChildWomen,
		)
		if err != nil {
			return nil, fmt.Errorf("scan active user route: %w", err)
		}
		u.Enabled = enabledInt == 1
		u.NotifyOnChangeOnly = notifyInt == 1
		u.CreatedAt, _ = time.Parse(timeLayout, userCreated)
		r.DepartureTimeMin = depMin.String
		r.DepartureTimeMax = depMax.String
		r.CreatedAt, _ = time.Parse(timeLayout, routeCreated)

		result = append(result, UserRoute{User: u, Route: r, Passengers: p})
	}
	return result, rows.Err()
}

// GetRouteState returns the persisted fingerprint and counters for a
// route, or nil if no observation has completed yet.
func (s *SQLite) GetRouteState(ctx context.Context, routeID int64) (*model.RouteState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT route_id, last_seen_hash, last_check, total_checks, total_alerts
		 FROM route_states WHERE route_id = ?`, routeID,
	)
	var st model.RouteState
	var lastCheck sql.NullString
	err := row.Scan(&st.RouteID, &st.LastSeenHash, &lastCheck, &st.TotalChecks, &st.TotalAlerts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan route state: %w", err)
	}
	if lastCheck.Valid {
		t, _ := time.Parse(timeLayout, lastCheck.String)
		st.LastCheck = &t
	}
	return &st, nil
}

// SaveRouteState creates or updates a route's state row atomically within
// a single transaction, incrementing TotalChecks (and TotalAlerts when
// incrementAlert is set) relative to whatever is currently persisted.
func (s *SQLite) SaveRouteState(ctx context.Context, routeID int64, hash string, incrementAlert bool) (*model.RouteState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	nowStr := now.Format(timeLayout)

	var existing model.RouteState
	var lastCheck sql.NullString
	row := tx.QueryRowContext(ctx,
		`SELECT route_id, last_seen_hash, last_check, total_checks, total_alerts
		 FROM route_states WHERE route_id = ?`, routeID,
	)
	err = row.Scan(&existing.RouteID, &existing.LastSeenHash, &lastCheck, &existing.TotalChecks, &existing.TotalAlerts)

	switch {
	case err == sql.ErrNoRows:
		totalAlerts := 0
		if incrementAlert {
			totalAlerts = 1
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO route_states (route_id, last_seen_hash, last_check, total_checks, total_alerts)
			 VALUES (?, ?, ?, 1, ?)`,
			routeID, hash, nowStr, totalAlerts,
		)
		if err != nil {
			return nil, fmt.Errorf("insert route state: %w", err)
		}
		existing = model.RouteState{RouteID: routeID, LastSeenHash: hash, LastCheck: &now, TotalChecks: 1, TotalAlerts: int64(totalAlerts)}
	case err != nil:
		return nil, fmt.Errorf("scan route state: %w", err)
	default:
		existing.TotalChecks++
		if incrementAlert {
			existing.TotalAlerts++
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE route_states SET last_seen_hash = ?, last_check = ?, total_checks = ?, total_alerts = ?
			 WHERE route_id = ?`,
			hash, nowStr, existing.TotalChecks, existing.TotalAlerts, routeID,
		)
		if err != nil {
			return nil, fmt.Errorf("update route state: %w", err)
		}
		existing.LastSeenHash = hash
		existing.LastCheck = &now
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit route state: %w", err)
	}
	return &existing, nil
}

// UpsertRoute inserts or replaces a catalogue route entry.
func (s *SQLite) UpsertRoute(ctx context.Context, r *model.Route) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routes (id, area_id, name, change_flag) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET area_id = excluded.area_id, name = excluded.name, change_flag = excluded.change_flag`,
		r.ID, r.AreaID, r.Name, nullableString(r.ChangeFlag),
	)
	if err != nil {
		return fmt.Errorf("upsert route: %w", err)
	}
	return nil
}

// UpsertStation inserts or replaces a catalogue station entry.
func (s *SQLite) UpsertStation(ctx context.Context, st *model.Station) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stations (id, name, area_id, route_id) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, area_id = excluded.area_id, route_id = excluded.route_id`,
		st.ID, st.Name, st.AreaID, nullableString(st.RouteID),
	)
	if err != nil {
		return fmt.Errorf("upsert station: %w", err)
	}
	return nil
}

// GetStationName resolves a station code to its catalogue display name.
func (s *SQLite) GetStationName(ctx context.Context, stationID string) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM stations WHERE id = ?`, stationID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get station name: %w", err)
	}
	return name, true, nil
}

// ListRoutes returns the full route catalogue.
func (s *SQLite) ListRoutes(ctx context.Context) ([]model.Route, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, area_id, name, change_flag FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var routes []model.Route
	for rows.Next() {
		var r model.Route
		var changeFlag sql.NullString
		if err := rows.Scan(&r.ID, &r.AreaID, &r.Name, &changeFlag); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		r.ChangeFlag = changeFlag.String
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// ListStations returns the full station catalogue.
func (s *SQLite) ListStations(ctx context.Context) ([]model.Station, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, area_id, route_id FROM stations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stations []model.Station
	for rows.Next() {
		var st model.Station
		var routeID sql.NullString
		if err := rows.Scan(&st.ID, &st.Name, &st.AreaID, &routeID); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		st.RouteID = routeID.String
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*model.User, error) {
	var u model.User
	var enabledInt, notifyInt int
	var created string
	err := row.Scan(&u.ID, &enabledInt, &u.PollIntervalSecs, &u.WebhookURL, &notifyInt, &created)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Enabled = enabledInt == 1
	u.NotifyOnChangeOnly = notifyInt == 1
	u.CreatedAt, _ = time.Parse(timeLayout, created)
	return &u, nil
}

func scanTrackedRoute(row scannable) (*model.TrackedRoute, error) {
	var r model.TrackedRoute
	var depMin, depMax sql.NullString
	var created string
	err := row.Scan(&r.ID, &r.UserID, &r.AreaID, &r.RouteID, &r.OriginStation, &r.DestinationStation,
		&r.DateStart, &r.DateEnd, &depMin, &depMax, &created)
	if err != nil {
		return nil, fmt.Errorf("scan tracked route: %w", err)
	}
	r.DepartureTimeMin = depMin.String
	r.DepartureTimeMax = depMax.String
	r.CreatedAt, _ = time.Parse(timeLayout, created)
	return &r, nil
}

func scanPassengerCount(row scannable) (*model.PassengerCount, error) {
	var p model.PassengerCount
	err := row.Scan(&p.RouteID, &p.AdultMen, &p.AdultWomen, &p.ChildMen, &p.ChildWomen,
		&p.HandicapAdultMen, &p.HandicapAdultWomen, &p.HandicapChildMen, &p.HandicapChildWomen)
	if err != nil {
		return nil, fmt.Errorf("scan passenger count: %w", err)
	}
	return &p, nil
}
