// Package scraper composes the HTTP client, XML extractor and HTML
// extractor into the booking site's 5-step interrogation hierarchy.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/dateutil"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/htmlschedule"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/httpclient"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
	"github.com/florian-trehaut/bus-availabilities-scraper/internal/xmlparse"
)

// ErrParse is returned when the remote's XML or HTML is malformed or
// structurally unexpected. It is fatal for the current tick.
var ErrParse = errors.New("scraper: parse error")

// ErrInvalidResponse is the category for a response that is well-formed but
// semantically wrong, e.g. a required field is absent. No operation in this
// package returns it: the extractors fill absent fields with defaults.
var ErrInvalidResponse = errors.New("scraper: invalid response")

// ErrConfiguration is returned for bad request parameters discovered at
// call time (inverted date range, unparsable dates).
var ErrConfiguration = errors.New("scraper: configuration error")

const (
	pulldownPath     = "/ajaxPulldown"
	reservationPath  = "/reservation/rsvPlanList"
)

// Scraper is stateless across calls apart from the HTTP client's shared
// cookie jar.
type Scraper struct {
	client *httpclient.Client
}

// New creates a Scraper backed by a fresh cookie-bound HTTP client.
func New(baseURL string) (*Scraper, error) {
	client, err := httpclient.New(baseURL)
	if err != nil {
		return nil, err
	}
	return &Scraper{client: client}, nil
}

// FetchRoutes returns the routes available in an area (mode=line:full).
func (s *Scraper) FetchRoutes(ctx context.Context, areaID int) ([]model.Route, error) {
	form := url.Values{"mode": {"line:full"}, "id": {strconv.Itoa(areaID)}}
	body, err := s.client.PostForm(ctx, pulldownPath, form)
	if err != nil {
		return nil, err
	}
	records, err := xmlparse.ParseRoutes(body)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch routes: %v", ErrParse, err)
	}
	routes := make([]model.Route, 0, len(records))
	for _, r := range records {
		routes = append(routes, model.Route{ID: r.ID, AreaID: areaID, Name: r.Name, ChangeFlag: r.ChangeFlag})
	}
	return routes, nil
}

// FetchDepartureStations returns the origin stations for a route
// (mode=station_geton).
func (s *Scraper) FetchDepartureStations(ctx context.Context, routeID int) ([]model.Station, error) {
	form := url.Values{"mode": {"station_geton"}, "id": {strconv.Itoa(routeID)}}
	return s.fetchStations(ctx, form, routeID)
}

// FetchArrivalStations returns the destination stations reachable from
// originCode on a route (mode=station_getoff).
func (s *Scraper) FetchArrivalStations(ctx context.Context, routeID int, originCode string) ([]model.Station, error) {
	form := url.Values{
		"mode":      {"station_getoff"},
		"id":        {strconv.Itoa(routeID)},
		"stationcd": {originCode},
	}
	return s.fetchStations(ctx, form, routeID)
}

func (s *Scraper) fetchStations(ctx context.Context, form url.Values, routeID int) ([]model.Station, error) {
	body, err := s.client.PostForm(ctx, pulldownPath, form)
	if err != nil {
		return nil, err
	}
	records, err := xmlparse.ParseStations(body)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch stations: %v", ErrParse, err)
	}
	stations := make([]model.Station, 0, len(records))
	for _, r := range records {
		stations = append(stations, model.Station{ID: r.ID, Name: r.Name, RouteID: strconv.Itoa(routeID)})
	}
	return stations, nil
}

// FetchAvailableDates returns the calendar dates (YYYYMMDD) that have
// availability for a given route/origin/destination (mode=date).
func (s *Scraper) FetchAvailableDates(ctx context.Context, routeID int, originCode, destCode string) ([]string, error) {
	form := url.Values{
		"mode":      {"date"},
		"id":        {strconv.Itoa(routeID)},
		"onStation": {originCode},
		"offStation": {destCode},
	}
	body, err := s.client.PostForm(ctx, pulldownPath, form)
	if err != nil {
		return nil, err
	}
	records, err := xmlparse.ParseDates(body)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch available dates: %v", ErrParse, err)
	}
	dates := make([]string, 0, len(records))
	for _, r := range records {
		dates = append(dates, r.ID)
	}
	return dates, nil
}

// FetchSchedules performs the reservation planning GET for one calendar
// date (YYYYMMDD) and returns the schedules the HTML extractor recovers,
// narrowed by the request's optional TimeFilter.
func (s *Scraper) FetchSchedules(ctx context.Context, req model.ScrapeRequest, date string) ([]model.BusSchedule, error) {
	p := req.Passengers
	query := url.Values{
		"mode":               {"search"},
		"route":              {strconv.Itoa(req.AreaID)},
		"lineId":             {strconv.Itoa(req.RouteID)},
		"onStationCd":        {req.DepartureStation},
		"offStationCd":       {req.ArrivalStation},
		"bordingDate":        {date},
		"danseiNum":          {strconv.Itoa(p.TotalMale())},
		"zyoseiNum":          {strconv.Itoa(p.TotalFemale())},
		"adultMen":           {strconv.Itoa(p.AdultMen)},
		"adultWomen":         {strconv.Itoa(p.AdultWomen)},
		"childMen":           {strconv.Itoa(p.ChildMen)},
		"childWomen":         {strconv.Itoa(p.ChildWomen)},
		"handicapAdultMen":   {strconv.Itoa(p.HandicapAdultMen)},
		"handicapAdultWomen": {strconv.Itoa(p.HandicapAdultWomen)},
		"handicapChildMen":   {strconv.Itoa(p.HandicapChildMen)},
		"handicapChildWomen": {strconv.Itoa(p.HandicapChildWomen)},
	}

	html, err := s.client.Get(ctx, reservationPath, query)
	if err != nil {
		return nil, err
	}

	schedules, err := htmlschedule.Parse(html, date)
	if err != nil {
		return nil, fmt.Errorf("%w: parse schedules html: %v", ErrParse, err)
	}

	if req.TimeFilter != nil {
		schedules = filterByTime(schedules, *req.TimeFilter)
	}
	return schedules, nil
}

func filterByTime(schedules []model.BusSchedule, tf model.TimeFilter) []model.BusSchedule {
	filtered := make([]model.BusSchedule, 0, len(schedules))
	for _, sch := range schedules {
		if tf.Matches(sch.DepartureTime) {
			filtered = append(filtered, sch)
		}
	}
	return filtered
}

// CheckAvailability enumerates every calendar date in the request's
// inclusive window, fetches schedules for each, and concatenates the
// results (already time-filtered by FetchSchedules).
func (s *Scraper) CheckAvailability(ctx context.Context, req model.ScrapeRequest) ([]model.BusSchedule, error) {
	dates, err := dateutil.Range(req.DateStart, req.DateEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	var all []model.BusSchedule
	for _, date := range dates {
		schedules, err := s.FetchSchedules(ctx, req, date)
		if err != nil {
			return nil, err
		}
		all = append(all, schedules...)
	}
	return all, nil
}
