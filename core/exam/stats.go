package exam

import "math"

// ComputeStats derives dashboard statistics from a student's test history and
// assignment state. It is pure; callers pass the already fetched data.
//
// assignedCount is the number of tests currently assigned to the student,
// completedAssigned the number of those they have completed.
func ComputeStats(history []TestResult, assignedCount, completedAssigned int) Stats {
	stats := Stats{
		TotalTestsTaken:        len(history),
		CompletedAssignedTests: completedAssigned,
	}

	if len(history) > 0 {
		var total int
		for _, res := range history {
			total += res.Score
		}
		stats.AverageScore = int(math.Round(float64(total) / float64(len(history))))
	}

	// Best subject is the one with the highest average score. Ties keep the
	// subject seen first in the history.
	var order []string
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, res := range history {
		if _, ok := sums[res.Subject]; !ok {
			order = append(order, res.Subject)
		}
		sums[res.Subject] += res.Score
		counts[res.Subject]++
	}
	var bestAvg float64
	for _, subject := range order {
		avg := float64(sums[subject]) / float64(counts[subject])
		if stats.BestSubject == "" || avg > bestAvg {
			stats.BestSubject = subject
			bestAvg = avg
		}
	}

	if pending := assignedCount - completedAssigned; pending > 0 {
		stats.PendingTests = pending
	}
	return stats
}
