package tracker

import "github.com/florian-trehaut/bus-availabilities-scraper/internal/model"

// shouldNotify decides whether an observation warrants a webhook alert.
//
//	notifyOnChangeOnly  stateChanged  result
//	true                true          true
//	true                false         false
//	false               *             true
func shouldNotify(notifyOnChangeOnly, stateChanged bool) bool {
	if notifyOnChangeOnly {
		return stateChanged
	}
	return true
}

// stateChanged reports whether currentHash differs from the last persisted
// hash. An absent previous state (first observation) always counts as
// changed.
func stateChanged(lastHash *string, currentHash string) bool {
	if lastHash == nil {
		return true
	}
	return *lastHash != currentHash
}

// schedulesWithSeats filters to schedules carrying at least one plan whose
// status is available, whether or not the remaining count is known.
func schedulesWithSeats(schedules []model.BusSchedule) []model.BusSchedule {
	out := make([]model.BusSchedule, 0, len(schedules))
	for _, sch := range schedules {
		if hasAvailability(sch) {
			out = append(out, sch)
		}
	}
	return out
}

func hasAvailability(sch model.BusSchedule) bool {
	for _, p := range sch.Plans {
		if p.Availability.Status == model.SeatAvailable {
			return true
		}
	}
	return false
}
