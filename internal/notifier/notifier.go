// Package notifier posts availability alerts to a generic incoming webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// embedColor values, matching the Discord-compatible embed palette most
// webhook receivers (Discord, Slack-compatible relays) already understand.
const (
	colorStartup      = 5763719 // green
	colorAvailability = 3066993 // teal
)

// Context carries the human-facing labels a notification needs beyond the
// raw schedule data.
type Context struct {
	DepartureStationName string
	ArrivalStationName   string
	DateStart            string // YYYYMMDD
	DateEnd              string // YYYYMMDD
	PassengerCount       int
	TimeFilter           *model.TimeFilter
}

// Notifier posts JSON payloads to per-user webhook URLs.
type Notifier struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Notifier with the given HTTP client.
func New(client HTTPClient) *Notifier {
	return &Notifier{client: client, timeout: 10 * time.Second}
}

type payload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

type embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       int     `json:"color"`
	Fields      []field `json:"fields,omitempty"`
	Footer      *footer `json:"footer,omitempty"`
	Timestamp   string  `json:"timestamp"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type footer struct {
	Text string `json:"text"`
}

// SendStartup posts a one-line confirmation that the tracker has started
// monitoring userCount users across routeCount routes. Delivery failures
// are logged by the caller and never block startup.
func (n *Notifier) SendStartup(ctx context.Context, webhookURL string, userCount, routeCount int) error {
	e := embed{
		Title:       "Bus tracker started",
		Description: fmt.Sprintf("Monitoring %d user(s) across %d route(s)", userCount, routeCount),
		Color:       colorStartup,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	return n.post(ctx, webhookURL, payload{Embeds: []embed{e}})
}

// SendAvailabilityAlert posts one embed describing every schedule with at
// least one available plan. It is a no-op (nothing is posted and nil is
// returned) if schedules carries no available plans at all.
func (n *Notifier) SendAvailabilityAlert(ctx context.Context, webhookURL string, schedules []model.BusSchedule, nctx Context) error {
	e := n.buildEmbed(schedules, nctx)
	if e == nil {
		return nil
	}
	return n.post(ctx, webhookURL, payload{Embeds: []embed{*e}})
}

func (n *Notifier) buildEmbed(schedules []model.BusSchedule, nctx Context) *embed {
	var fields []field
	countWithPlans := 0

	for _, sch := range schedules {
		available := availablePlans(sch)
		if len(available) == 0 {
			continue
		}
		countWithPlans++

		for _, plan := range available {
			fields = append(fields, field{
				Name:  fmt.Sprintf("Bus %s - Plan %d", sch.BusNumber, plan.PlanID),
				Value: fmt.Sprintf("%s at %s\nArrival: %s\n%s\n%s", formatDate(sch.DepartureDate), sch.DepartureTime, sch.ArrivalTime, seatsInfo(plan.Availability), plan.DisplayPrice),
			})
		}
	}

	if countWithPlans == 0 {
		return nil
	}

	description := fmt.Sprintf("%d bus(es) with available seats\n%s -> %s\n%s - %s",
		countWithPlans, nctx.DepartureStationName, nctx.ArrivalStationName,
		formatDate(nctx.DateStart), formatDate(nctx.DateEnd))

	return &embed{
		Title:       "Bus seats available",
		Description: description,
		Color:       colorAvailability,
		Fields:      fields,
		Footer:      &footer{Text: footerText(nctx)},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func availablePlans(sch model.BusSchedule) []model.PricingPlan {
	var out []model.PricingPlan
	for _, p := range sch.Plans {
		if p.Availability.Status == model.SeatAvailable {
			out = append(out, p)
		}
	}
	return out
}

func seatsInfo(a model.SeatAvailability) string {
	if a.Remaining != nil {
		return fmt.Sprintf("%d seat(s)", *a.Remaining)
	}
	return "seats available"
}

func footerText(nctx Context) string {
	if nctx.TimeFilter != nil && (nctx.TimeFilter.Min != "" || nctx.TimeFilter.Max != "") {
		return fmt.Sprintf("%d passenger(s) | hours: %s - %s", nctx.PassengerCount, nctx.TimeFilter.Min, nctx.TimeFilter.Max)
	}
	return fmt.Sprintf("%d passenger(s) | all hours", nctx.PassengerCount)
}

func formatDate(yyyymmdd string) string {
	if len(yyyymmdd) != 8 {
		return yyyymmdd
	}
	return fmt.Sprintf("%s/%s/%s", yyyymmdd[6:8], yyyymmdd[4:6], yyyymmdd[0:4])
}

func (n *Notifier) post(ctx context.Context, webhookURL string, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notifier: marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifier: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
