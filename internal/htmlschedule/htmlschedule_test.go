package htmlschedule

import (
	"os"
	"testing"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
)

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func TestParseFixtureTwoBuses(t *testing.T) {
	html := loadFixture(t, "../../testdata/schedule.html")

	schedules, err := Parse(html, "20260802")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(schedules) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(schedules))
	}
	if schedules[0].BusNumber != "2201" || schedules[1].BusNumber != "2202" {
		t.Errorf("unexpected bus numbers: %q, %q", schedules[0].BusNumber, schedules[1].BusNumber)
	}
	if len(schedules[0].Plans) != 2 {
		t.Fatalf("expected 2 plans on first bus, got %d", len(schedules[0].Plans))
	}
	if schedules[0].Plans[0].Availability.Remaining == nil || *schedules[0].Plans[0].Availability.Remaining != 1 {
		t.Errorf("expected 1 remaining seat on first plan, got %v", schedules[0].Plans[0].Availability.Remaining)
	}
	if len(schedules[1].Plans) != 1 || schedules[1].Plans[0].Availability.Remaining != nil {
		t.Errorf("second bus's single plan should be available with unknown count, got %+v", schedules[1].Plans)
	}
}

const sampleHTML = `
<html><body>
<section class="busSvclistItem">
	<div class="modalHeader">
		<span class="busNumber">1001</span>
		<span class="routeName">Tokyo - Osaka</span>
	</div>
	<div class="dep">
		<span class="stationName">Tokyo Station</span>
		<span class="day">08/02(Sun)</span>
		<span class="time">09:00</span>
	</div>
	<div class="arr">
		<span class="stationName">Osaka Station</span>
		<span class="day">08/02(Sun)</span>
		<span class="time">15:30</span>
	</div>
	<input type="hidden" name="wayNo" value="1">
	<form>
		<input type="hidden" class="seat_1" data-index="0" value="1">
		<input type="hidden" class="price_1" data-index="0" value="8000">
		<input type="hidden" name="dispPrice" data-index="0" value="8,000">
		<input type="hidden" name="discntPlanNo" data-index="0" value="55">
		<input type="hidden" name="planName" data-index="0" value="Regular">
		<button data-index="0">Book (3 seats left)</button>

		<input type="hidden" class="seat_1" data-index="1" value="2">
		<input type="hidden" class="price_1" data-index="1" value="6000">
		<input type="hidden" name="dispPrice" data-index="1" value="6,000">
		<input type="hidden" name="discntPlanNo" data-index="1" value="56">
		<input type="hidden" name="planName" data-index="1" value="Student">
		<button data-index="1">Sold out</button>
	</form>
</section>
</body></html>
`

func TestParseExtractsOneBusWithTwoPlans(t *testing.T) {
	schedules, err := Parse(sampleHTML, "20260802")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(schedules))
	}

	sch := schedules[0]
	if sch.BusNumber != "1001" || sch.RouteName != "Tokyo - Osaka" {
		t.Errorf("bus/route = %q/%q", sch.BusNumber, sch.RouteName)
	}
	if sch.DepartureStation != "Tokyo Station" || sch.DepartureTime != "09:00" {
		t.Errorf("departure = %q at %q", sch.DepartureStation, sch.DepartureTime)
	}
	if sch.ArrivalStation != "Osaka Station" || sch.ArrivalTime != "15:30" {
		t.Errorf("arrival = %q at %q", sch.ArrivalStation, sch.ArrivalTime)
	}
	if sch.WayNo != 1 {
		t.Errorf("WayNo = %d, want 1", sch.WayNo)
	}
	if len(sch.Plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(sch.Plans))
	}

	avail := sch.Plans[0]
	if avail.PlanID != 55 || avail.PlanName != "Regular" || avail.Price != 8000 || avail.DisplayPrice != "8,000" {
		t.Errorf("plan[0] = %+v", avail)
	}
	if avail.Availability.Status != model.SeatAvailable {
		t.Errorf("plan[0] status = %v, want available", avail.Availability.Status)
	}
	if avail.Availability.Remaining == nil || *avail.Availability.Remaining != 3 {
		t.Errorf("plan[0] remaining = %v, want 3", avail.Availability.Remaining)
	}

	soldOut := sch.Plans[1]
	if soldOut.PlanID != 56 || soldOut.PlanName != "Student" {
		t.Errorf("plan[1] = %+v", soldOut)
	}
	if soldOut.Availability.Status != model.SeatSoldOut {
		t.Errorf("plan[1] status = %v, want sold out", soldOut.Availability.Status)
	}
	if soldOut.Availability.Remaining != nil {
		t.Errorf("plan[1] remaining should be nil for sold out, got %v", *soldOut.Availability.Remaining)
	}
}

func TestParseNoBusSections(t *testing.T) {
	schedules, err := Parse(`<html><body><p>No results found.</p></body></html>`, "20260802")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(schedules) != 0 {
		t.Errorf("expected no schedules, got %d", len(schedules))
	}
}

func TestParseMissingArrivalDateFallsBackToBoardingDate(t *testing.T) {
	html := `
	<section class="busSvclistItem">
		<div class="modalHeader"><span class="busNumber">1</span><span class="routeName">R</span></div>
		<div class="dep"><span class="stationName">A</span><span class="day">08/02</span><span class="time">09:00</span></div>
		<div class="arr"><span class="stationName">B</span><span class="time">10:00</span></div>
	</section>`
	schedules, err := Parse(html, "20260802")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(schedules))
	}
	if schedules[0].ArrivalDate != "20260802" {
		t.Errorf("ArrivalDate = %q, want boarding date fallback", schedules[0].ArrivalDate)
	}
}

func TestSeatStatusUnknownValue(t *testing.T) {
	html := `
	<section class="busSvclistItem">
		<div class="modalHeader"><span class="busNumber">1</span><span class="routeName">R</span></div>
		<div class="dep"><span class="stationName">A</span><span class="time">09:00</span></div>
		<div class="arr"><span class="stationName">B</span><span class="time">10:00</span></div>
		<form>
			<input type="hidden" class="seat_1" data-index="0" value="9">
			<input type="hidden" class="price_1" data-index="0" value="1000">
		</form>
	</section>`
	schedules, err := Parse(html, "20260802")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if schedules[0].Plans[0].Availability.Status != model.SeatUnknown {
		t.Errorf("status = %v, want unknown", schedules[0].Plans[0].Availability.Status)
	}
}
