package harvest

// CorrectRollover fixes the dates of results that run past midnight.
//
// A results page is requested for one date, but the upstream lists journeys
// for a window that can cross into the following day while still printing
// bare clock times. The first result is taken to be on the requested date;
// any later result whose departure hour is earlier than the first one's, and
// which still sits on that same date, is moved forward one day.
//
// Observations are modified in place. The number moved is returned.
func CorrectRollover(observations []Observation) int {
	if len(observations) == 0 {
		return 0
	}

	anchor := observations[0].Journey.DepartureTime
	anchorYear, anchorMonth, anchorDay := anchor.Date()

	shifted := 0
	for _, observation := range observations[1:] {
		departure := observation.Journey.DepartureTime

		year, month, day := departure.Date()
		sameDate := year == anchorYear && month == anchorMonth && day == anchorDay

		if sameDate && departure.Hour() < anchor.Hour() {
			observation.Journey.ShiftDays(1)
			shifted++
		}
	}

	return shifted
}
