// Package htmlschedule extracts bus schedules, seat availability and pricing
// from the HTML the booking site's search endpoint returns for one date.
// Every extraction is expressed as a small pure function over the parsed
// document so that a future markup change breaks only this package.
package htmlschedule

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
)

// busSectionSelector marks one bus list item; the site renders every
// scheduled departure as a <section> with this class.
const busSectionSelector = "section.busSvclistItem"

var remainingDigitsRe = regexp.MustCompile(`\d+`)

// Parse extracts the ordered list of bus schedules from the HTML body
// returned for boardingDate (YYYYMMDD). A structurally absent bus list
// yields an empty, non-error result: "no schedules for this date/query".
func Parse(html string, boardingDate string) ([]model.BusSchedule, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var schedules []model.BusSchedule
	doc.Find(busSectionSelector).Each(func(zeroIdx int, section *goquery.Selection) {
		index := zeroIdx + 1 // 1-based, matches the seat_{i}/price_{i} class suffix
		schedules = append(schedules, parseBus(section, index, boardingDate))
	})

	return schedules, nil
}

func parseBus(section *goquery.Selection, index int, boardingDate string) model.BusSchedule {
	depDate, depTime := extractDayTime(section, "dep")
	arrDate, arrTime := extractDayTime(section, "arr")
	if arrDate == "" {
		arrDate = boardingDate
	}

	busNumber := textOf(section, ".modalHeader .busNumber")
	routeName := textOf(section, ".modalHeader .routeName")

	return model.BusSchedule{
		BusNumber:        busNumber,
		RouteName:        routeName,
		DepartureStation: textOf(section, ".dep .stationName"),
		DepartureDate:    firstNonEmpty(depDate, boardingDate),
		DepartureTime:    depTime,
		ArrivalStation:   textOf(section, ".arr .stationName"),
		ArrivalDate:      arrDate,
		ArrivalTime:      arrTime,
		WayNo:            intAttr(section.Find("input[name='wayNo']"), "value", 0),
		Plans:            extractPlans(section, index),
	}
}

// extractDayTime pulls the raw day and time text for the "dep" or "arr"
// side of a schedule. Both strings are preserved verbatim: the site mixes
// languages and literal separators in the day text, and callers must not
// attempt to reformat it.
func extractDayTime(section *goquery.Selection, side string) (day, timeText string) {
	day = textOf(section, "."+side+" .day")
	timeText = textOf(section, "."+side+" .time")
	return day, timeText
}

// extractPlans collects every pricing plan attached to the bus at index,
// keyed by the seat_{index} hidden inputs the site renders one per plan.
func extractPlans(section *goquery.Selection, index int) []model.PricingPlan {
	seatClass := "seat_" + strconv.Itoa(index)
	priceClass := "price_" + strconv.Itoa(index)

	var plans []model.PricingPlan
	section.Find("input[type='hidden']." + seatClass).Each(func(_ int, seatInput *goquery.Selection) {
		planIndex := intAttr(seatInput, "data-index", 0)
		seatValue := textAttr(seatInput, "value")

		status := seatStatus(seatValue)

		form := seatInput.Closest("form")

		priceSel := form.Find("input[type='hidden']." + priceClass + "[data-index='" + strconv.Itoa(planIndex) + "']")
		price := intAttr(priceSel, "value", 0)

		displayPrice := textAttr(form.Find("input[name='dispPrice'][data-index='"+strconv.Itoa(planIndex)+"']"), "value")
		if displayPrice == "" && price > 0 {
			displayPrice = strconv.Itoa(price)
		}

		planID := intAttr(form.Find("input[name='discntPlanNo'][data-index='"+strconv.Itoa(planIndex)+"']"), "value", 0)

		buttonText := textOf(form, "button[data-index='"+strconv.Itoa(planIndex)+"']")
		var remaining *int
		if status == model.SeatAvailable {
			remaining = parseRemainingSeats(buttonText)
		}

		plans = append(plans, model.PricingPlan{
			PlanID:       planID,
			PlanIndex:    planIndex,
			PlanName:     textAttr(form.Find("input[name='planName'][data-index='"+strconv.Itoa(planIndex)+"']"), "value"),
			Price:        price,
			DisplayPrice: displayPrice,
			Availability: model.SeatAvailability{Status: status, Remaining: remaining},
		})
	})

	return plans
}

// seatStatus maps the remote's seat_N value to a SeatStatus. 1 means "has
// availability for the current passenger query", 2 means sold out for
// this query; anything else is treated as unknown rather than inferred.
func seatStatus(value string) model.SeatStatus {
	switch value {
	case "1":
		return model.SeatAvailable
	case "2":
		return model.SeatSoldOut
	default:
		return model.SeatUnknown
	}
}

// parseRemainingSeats extracts the remaining-seat count from a plan
// button's visible text: the first integer appearing in the text is the
// remaining count. Absent digits mean "available, count unknown".
func parseRemainingSeats(buttonText string) *int {
	match := remainingDigitsRe.FindString(buttonText)
	if match == "" {
		return nil
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &n
}

func textOf(sel *goquery.Selection, selector string) string {
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

func textAttr(sel *goquery.Selection, attr string) string {
	v, _ := sel.First().Attr(attr)
	return strings.TrimSpace(v)
}

func intAttr(sel *goquery.Selection, attr string, def int) int {
	v, ok := sel.First().Attr(attr)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
