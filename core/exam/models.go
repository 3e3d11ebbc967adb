package exam

import (
	"time"

	"github.com/edlabhq/exameval/core"
)

// Question types
const (
	QuestionEssay = "essay"
)

// Difficulties
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Student listing tabs
const (
	TabAll       = "all"
	TabAssigned  = "assigned"
	TabCompleted = "completed"
	TabPractice  = "practice"
)

// SectionAllStudents marks a test as assigned to every section.
const SectionAllStudents = "All Students"

// DefaultDueDelta is how far in the future an assignment is due when no due date is given.
const DefaultDueDelta = 7 * 24 * time.Hour

type Question struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Type      string `json:"type"` // always QuestionEssay
	Marks     int    `json:"marks"`
	WordLimit int    `json:"word_limit"`
}

type Test struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	Duration    int        `json:"duration"` // minutes
	TotalMarks  int        `json:"total_marks"`
	Difficulty  string     `json:"difficulty"`
	Questions   []Question `json:"questions"`
	IsPractice  bool       `json:"is_practice"`
	IsAssigned  bool       `json:"is_assigned"`
	AssignedTo  []string   `json:"assigned_to"` // section names
	AssignedAt  time.Time  `json:"assigned_at"`
	DueDate     time.Time  `json:"due_date"`
	CreatedBy   string     `json:"created_by"` // teacher user ID
	CreatedName string     `json:"created_by_name"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
}

// VisibleToSection reports whether an assigned test targets the given section.
func (t *Test) VisibleToSection(section string) bool {
	if !t.IsAssigned {
		return false
	}
	for _, s := range t.AssignedTo {
		if s == section || s == SectionAllStudents {
			return true
		}
	}
	return false
}

func (t *Test) MaxScore() int {
	var total int
	for _, q := range t.Questions {
		total += q.Marks
	}
	return total
}

// StudentTest is a Test decorated with per-student state.
type StudentTest struct {
	Test
	IsCompleted bool   `json:"is_completed"`
	AssignedBy  string `json:"assigned_by,omitempty"`
}

type Section struct {
	Name         string  `json:"name"`
	StudentCount int     `json:"student_count"`
	AvgScore     float64 `json:"avg_score"`
}

// QuestionResult is the evaluation of a single answered (or unanswered) question.
type QuestionResult struct {
	Score        int      `json:"score"` // percent
	MaxScore     int      `json:"max_score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// TestResult is a single entry in a student's test history.
type TestResult struct {
	ID             string                 `json:"id"`
	TestID         string                 `json:"test_id"`
	TestTitle      string                 `json:"test_title"`
	Subject        string                 `json:"subject"`
	StudentID      string                 `json:"student_id"`
	Score          int                    `json:"score"` // percent
	Evaluation     map[int]QuestionResult `json:"evaluation"`
	TimeSpentMin   int                    `json:"time_spent_min"`
	IsAssignedTest bool                   `json:"is_assigned_test"`
	CompletedAt    time.Time              `json:"completed_at"` // UTC
}

// Stats summarizes a student's dashboard numbers; always derived fresh.
type Stats struct {
	TotalTestsTaken        int    `json:"total_tests_taken"`
	AverageScore           int    `json:"average_score"`
	BestSubject            string `json:"best_subject"`
	CompletedAssignedTests int    `json:"completed_assigned_tests"`
	PendingTests           int    `json:"pending_tests"`
}

// NewQuestion is a question within a NewTest request.
type NewQuestion struct {
	Text      string `json:"text" validate:"required"`
	Marks     int    `json:"marks" validate:"omitempty,gt=0"`
	WordLimit int    `json:"word_limit" validate:"omitempty,gt=0"`
}

// NewTest contains information needed to create a Test.
type NewTest struct {
	Title       string        `json:"title" validate:"required"`
	Subject     string        `json:"subject" validate:"required"`
	Description string        `json:"description"`
	Duration    int           `json:"duration" validate:"omitempty,gt=0"`
	TotalMarks  int           `json:"total_marks" validate:"omitempty,gt=0"`
	Difficulty  string        `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard"`
	Questions   []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (nt *NewTest) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	nt.Subject = core.CleanString(nt.Subject)
	nt.Description = core.CleanString(nt.Description)
	for i := range nt.Questions {
		nt.Questions[i].Text = core.CleanString(nt.Questions[i].Text)
	}
	return core.Validate.Struct(nt)
}

// AssignTest assigns a test to a section.
type AssignTest struct {
	Section string    `json:"section" validate:"required"`
	DueDate time.Time `json:"due_date"`
}

func (at *AssignTest) Validate() error {
	at.Section = core.CleanString(at.Section)
	return core.Validate.Struct(at)
}

// NewSection contains information needed to create a Section.
type NewSection struct {
	Name         string `json:"name" validate:"required"`
	StudentCount int    `json:"student_count" validate:"omitempty,gte=0"`
}

func (ns *NewSection) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	return core.Validate.Struct(ns)
}

// NewSubmission carries a student's answers, keyed by question ID.
type NewSubmission struct {
	Answers map[int]string `json:"answers" validate:"required"`
}

func (s *NewSubmission) Validate() error {
	return core.Validate.Struct(s)
}
