// Package fingerprint computes the stable 64-bit hash used to detect
// whether a tick's observed availability differs from the last one.
package fingerprint

import (
	"hash/fnv"
	"strconv"

	"github.com/florian-trehaut/bus-availabilities-scraper/internal/model"
)

// sentinel values distinguish the three non-"available with a known
// count" cases so that a sold-out-to-available transition always changes
// the hash.
const (
	sentinelAvailableUnknown = "avail:unknown"
	sentinelSoldOut          = "sold_out"
	sentinelUnknown          = "unknown"
)

// Compute derives the deterministic 64-bit fingerprint over schedules, in
// the order given. Two calls over identical (order-preserving) input
// always produce the same value; any change to a plan's
// (id, price, availability) triple changes the value with overwhelming
// probability. An empty schedule list hashes to a constant sentinel value.
func Compute(schedules []model.BusSchedule) uint64 {
	h := fnv.New64a()

	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0}) // field separator, avoids "ab"+"c" == "a"+"bc" collisions
	}

	for _, sch := range schedules {
		write(sch.DepartureDate)
		write(sch.DepartureTime)

		for _, plan := range sch.Plans {
			write(strconv.Itoa(plan.PlanID))
			write(strconv.Itoa(plan.Price))
			write(availabilityToken(plan.Availability))
		}
	}

	return h.Sum64()
}

func availabilityToken(a model.SeatAvailability) string {
	switch a.Status {
	case model.SeatAvailable:
		if a.Remaining != nil {
			return "avail:" + strconv.Itoa(*a.Remaining)
		}
		return sentinelAvailableUnknown
	case model.SeatSoldOut:
		return sentinelSoldOut
	default:
		return sentinelUnknown
	}
}

// Format serialises a fingerprint as decimal text, the form RouteState
// persists it in.
func Format(fp uint64) string {
	return strconv.FormatUint(fp, 10)
}
