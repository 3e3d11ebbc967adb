package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	res := func(subject string, score int) TestResult {
		return TestResult{Subject: subject, Score: score}
	}

	tests := []struct {
		name              string
		history           []TestResult
		assigned          int
		completedAssigned int
		want              Stats
	}{
		{
			name: "empty history",
			want: Stats{},
		},
		{
			name:    "average rounds half up",
			history: []TestResult{res("Maths", 70), res("Maths", 75)}, // 72.5
			want: Stats{
				TotalTestsTaken: 2,
				AverageScore:    73,
				BestSubject:     "Maths",
			},
		},
		{
			name: "best subject by average",
			history: []TestResult{
				res("Maths", 60),
				res("Physics", 90),
				res("Maths", 70),
			},
			want: Stats{
				TotalTestsTaken: 3,
				AverageScore:    73,
				BestSubject:     "Physics",
			},
		},
		{
			name: "best subject tie keeps first seen",
			history: []TestResult{
				res("Maths", 80),
				res("Physics", 80),
			},
			want: Stats{
				TotalTestsTaken: 2,
				AverageScore:    80,
				BestSubject:     "Maths",
			},
		},
		{
			name:              "pending clamped at zero",
			assigned:          2,
			completedAssigned: 3,
			want:              Stats{CompletedAssignedTests: 3},
		},
		{
			name:              "pending is assigned minus completed",
			history:           []TestResult{res("Maths", 50)},
			assigned:          4,
			completedAssigned: 1,
			want: Stats{
				TotalTestsTaken:        1,
				AverageScore:           50,
				BestSubject:            "Maths",
				CompletedAssignedTests: 1,
				PendingTests:           3,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStats(tt.history, tt.assigned, tt.completedAssigned))
		})
	}
}
