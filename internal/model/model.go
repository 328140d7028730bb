// Package model defines the domain types used across the application.
package model

import "time"

// User owns zero or more tracked routes.
type User struct {
	ID                 int64
	Enabled            bool
	PollIntervalSecs   int
	WebhookURL         string
	NotifyOnChangeOnly bool
	CreatedAt          time.Time
}

// TrackedRoute is a user's monitored query against the booking site.
type TrackedRoute struct {
	ID                 int64
	UserID             int64
	AreaID             int
	RouteID            int
	OriginStation      string
	DestinationStation string
	DateStart          string // YYYY-MM-DD
	DateEnd            string // YYYY-MM-DD
	DepartureTimeMin   string // HH:MM, empty if unset
	DepartureTimeMax   string // HH:MM, empty if unset
	CreatedAt          time.Time
}

// PassengerCount holds the eight passenger buckets the remote site queries by.
type PassengerCount struct {
	RouteID            int64
	AdultMen           int
	AdultWomen         int
	ChildMen           int
	ChildWomen         int
	HandicapAdultMen   int
	HandicapAdultWomen int
	HandicapChildMen   int
	HandicapChildWomen int
}

// TotalMale returns the sum of every male passenger bucket.
func (p PassengerCount) TotalMale() int {
	return p.AdultMen + p.ChildMen + p.HandicapAdultMen + p.HandicapChildMen
}

// TotalFemale returns the sum of every female passenger bucket.
func (p PassengerCount) TotalFemale() int {
	return p.AdultWomen + p.ChildWomen + p.HandicapAdultWomen + p.HandicapChildWomen
}

// Total returns the total passenger count across every bucket.
func (p PassengerCount) Total() int {
	return p.TotalMale() + p.TotalFemale()
}

// RouteState is the persisted fingerprint and counters for one tracked route.
type RouteState struct {
	RouteID      int64
	LastSeenHash string // 64-bit fingerprint serialised as decimal text; empty if unset
	LastCheck    *time.Time
	TotalChecks  int64
	TotalAlerts  int64
}

// Route is a catalogue entry for a named line between stations.
type Route struct {
	ID         string
	AreaID     int
	Name       string
	ChangeFlag string // optional, mirrors the remote's switchChangeableFlg
}

// Station is a catalogue entry for a stop within an area.
type Station struct {
	ID      string
	Name    string
	AreaID  int
	RouteID string // optional, empty if not associated with a specific route
}

// SeatStatus is the kind of availability a pricing plan carries.
type SeatStatus string

// Supported seat statuses.
const (
	SeatAvailable SeatStatus = "available"
	SeatSoldOut   SeatStatus = "sold_out"
	SeatUnknown   SeatStatus = "unknown"
)

// SeatAvailability describes whether a pricing plan has open seats.
// Remaining is only meaningful when Status is SeatAvailable, and even then
// may be nil when the site advertises availability without a seat count.
type SeatAvailability struct {
	Status    SeatStatus
	Remaining *int
}

// PricingPlan is a fare variant attached to a bus schedule.
type PricingPlan struct {
	PlanID       int
	PlanIndex    int
	PlanName     string
	Price        int
	DisplayPrice string
	Availability SeatAvailability
}

// BusSchedule is one scheduled departure returned by the booking site.
type BusSchedule struct {
	BusNumber        string
	RouteName        string
	DepartureStation string
	DepartureDate    string // raw day text from the page; the boarding date (YYYYMMDD) when the page has none
	DepartureTime    string // HH:MM
	ArrivalStation   string
	ArrivalDate      string // raw day text from the page; the boarding date (YYYYMMDD) when the page has none
	ArrivalTime      string // HH:MM
	WayNo            int
	Plans            []PricingPlan
}

// TimeFilter narrows a scrape to schedules departing within [Min, Max],
// each in HH:MM. Either bound may be empty to mean unbounded on that side.
type TimeFilter struct {
	Min string
	Max string
}

// Matches reports whether departureTime (HH:MM) falls within the filter's
// window. Comparison is string-lexicographic, which is total-order
// equivalent to wall-clock ordering on a zero-padded HH:MM string.
func (f TimeFilter) Matches(departureTime string) bool {
	if f.Min != "" && departureTime < f.Min {
		return false
	}
	if f.Max != "" && departureTime > f.Max {
		return false
	}
	return true
}

// ScrapeRequest is everything the scraper needs to fetch and filter
// schedules for one tracked route.
type ScrapeRequest struct {
	AreaID             int
	RouteID            int
	DepartureStation   string
	ArrivalStation     string
	DateStart          string // YYYY-MM-DD or YYYYMMDD
	DateEnd            string // YYYY-MM-DD or YYYYMMDD
	Passengers         PassengerCount
	TimeFilter         *TimeFilter
}
