package settlement

import "time"

// RenewalWindow periodo que cubre una renovación de months meses.
// Arranca en el mayor entre el vencimiento actual y now: renovaciones sucesivas se apilan.
func RenewalWindow(currentExpiry, now time.Time, months int) (start, end time.Time) {
	start = now
	if currentExpiry.After(now) {
		start = currentExpiry
	}
	return start, start.AddDate(0, months, 0)
}
