package exam

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edlabhq/exameval/core"
	"github.com/edlabhq/exameval/core/user"
)

var (
	// errors
	ErrTestNotFound   = errors.New("test not found")
	ErrTestCompleted  = errors.New("this assigned test has already been completed")
	ErrSectionExists  = errors.New("section already exists with this name")
	ErrTestNotVisible = errors.New("test is not available to you")
)

type (
	Repository interface {
		CreateTest(ctx context.Context, t Test) (Test, error)
		GetTestByID(ctx context.Context, id string) (Test, error)
		// UpdateTestAssignment persists the assignment fields of t
		// (is_assigned, assigned_to, assigned_at, due_date).
		UpdateTestAssignment(ctx context.Context, t Test) (Test, error)
		QueryTestsByCreator(ctx context.Context, creatorID string) ([]Test, error)
		QueryPracticeTests(ctx context.Context) ([]Test, error)
		// QueryAssignedTests returns tests assigned to the given section,
		// including tests assigned to all sections, most recently assigned first.
		QueryAssignedTests(ctx context.Context, section string) ([]Test, error)

		CreateResult(ctx context.Context, res TestResult) (TestResult, error)
		// QueryResultsByStudent returns the student's history, most recent first.
		QueryResultsByStudent(ctx context.Context, studentID string) ([]TestResult, error)

		// GetCompletions returns the set of test IDs the student has completed.
		GetCompletions(ctx context.Context, studentID string) (map[string]bool, error)
		// SetCompleted marks a test completed for a student; overwriting is a no-op.
		SetCompleted(ctx context.Context, studentID, testID string) error

		QuerySections(ctx context.Context) ([]Section, error)
		CreateSection(ctx context.Context, s Section) (Section, error)
	}

	Service struct {
		repo      Repository
		evaluator Evaluator
	}
)

func NewService(repo Repository, evaluator Evaluator) *Service {
	return &Service{repo: repo, evaluator: evaluator}
}

// Create builds a Test from nt on behalf of its creator. Question IDs are
// assigned sequentially from 1; marks default to 100 and word limits to 200.
func (svc *Service) Create(ctx context.Context, creator user.User, nt NewTest) (Test, error) {
	questions := make([]Question, 0, len(nt.Questions))
	for i, nq := range nt.Questions {
		q := Question{
			ID:        i + 1,
			Text:      nq.Text,
			Type:      QuestionEssay,
			Marks:     nq.Marks,
			WordLimit: nq.WordLimit,
		}
		if q.Marks <= 0 {
			q.Marks = 100
		}
		if q.WordLimit <= 0 {
			q.WordLimit = 200
		}
		questions = append(questions, q)
	}

	t := Test{
		ID:          uuid.New().String(),
		Title:       nt.Title,
		Subject:     nt.Subject,
		Description: nt.Description,
		Duration:    nt.Duration,
		TotalMarks:  nt.TotalMarks,
		Difficulty:  nt.Difficulty,
		Questions:   questions,
		CreatedBy:   creator.ID,
		CreatedName: creator.Name,
		CreatedAt:   time.Now().UTC(),
	}
	if t.Duration <= 0 {
		t.Duration = 30
	}
	if t.Difficulty == "" {
		t.Difficulty = DifficultyMedium
	}
	if t.TotalMarks <= 0 {
		t.TotalMarks = t.MaxScore()
	}
	return svc.repo.CreateTest(ctx, t)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Test, error) {
	return svc.repo.GetTestByID(ctx, id)
}

// Assign assigns the test to a section. Assigning the same section again is a
// no-op; assigning a new section appends it and refreshes the assignment date.
func (svc *Service) Assign(ctx context.Context, id string, at AssignTest) (Test, error) {
	t, err := svc.repo.GetTestByID(ctx, id)
	if err != nil {
		return Test{}, err
	}

	for _, s := range t.AssignedTo {
		if s == at.Section {
			return t, nil
		}
	}

	t.IsAssigned = true
	t.AssignedTo = append(t.AssignedTo, at.Section)
	t.AssignedAt = time.Now().UTC()
	if t.DueDate = at.DueDate; t.DueDate.IsZero() {
		t.DueDate = t.AssignedAt.Add(DefaultDueDelta)
	}
	return svc.repo.UpdateTestAssignment(ctx, t)
}

// QueryForTeacher returns the tests created by the given teacher.
func (svc *Service) QueryForTeacher(ctx context.Context, teacherID string) ([]Test, error) {
	return svc.repo.QueryTestsByCreator(ctx, teacherID)
}

// QueryForStudent returns the tests visible to a student, filtered by tab:
// "assigned" (pending assigned tests), "completed", "practice" or "all".
func (svc *Service) QueryForStudent(ctx context.Context, student user.User, tab string) ([]StudentTest, error) {
	completions, err := svc.repo.GetCompletions(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	var tests []StudentTest

	if tab == TabAll || tab == TabAssigned || tab == TabCompleted || tab == "" {
		assigned, err := svc.repo.QueryAssignedTests(ctx, student.Section)
		if err != nil {
			return nil, err
		}
		for _, t := range assigned {
			st := StudentTest{Test: t, IsCompleted: completions[t.ID], AssignedBy: t.CreatedName}
			switch tab {
			case TabAssigned:
				if st.IsCompleted {
					continue
				}
			case TabCompleted:
				if !st.IsCompleted {
					continue
				}
			}
			tests = append(tests, st)
		}
	}

	if tab == TabAll || tab == TabPractice || tab == "" {
		practice, err := svc.repo.QueryPracticeTests(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range practice {
			tests = append(tests, StudentTest{Test: t, IsCompleted: completions[t.ID]})
		}
	}
	return tests, nil
}

// Submit evaluates a student's answers, appends the result to their history
// and, for assigned tests, marks the test completed. A completed assigned
// test cannot be retaken.
func (svc *Service) Submit(ctx context.Context, student user.User, testID string, sub NewSubmission) (TestResult, error) {
	t, err := svc.repo.GetTestByID(ctx, testID)
	if err != nil {
		return TestResult{}, err
	}
	if t.IsAssigned && !t.VisibleToSection(student.Section) {
		return TestResult{}, ErrTestNotVisible
	}

	completions, err := svc.repo.GetCompletions(ctx, student.ID)
	if err != nil {
		return TestResult{}, err
	}
	if t.IsAssigned && completions[t.ID] {
		return TestResult{}, core.NewValidationError(ErrTestCompleted)
	}

	var totalScore, totalPossible int
	evaluation := make(map[int]QuestionResult, len(t.Questions))
	for _, q := range t.Questions {
		qres := svc.evaluator.Evaluate(q, sub.Answers[q.ID])
		evaluation[q.ID] = qres
		totalScore += qres.Score
		totalPossible += qres.MaxScore
	}
	var finalScore int
	if totalPossible > 0 {
		finalScore = int(math.Round(float64(totalScore) / float64(totalPossible) * 100))
	}

	res := TestResult{
		ID:             uuid.New().String(),
		TestID:         t.ID,
		TestTitle:      t.Title,
		Subject:        t.Subject,
		StudentID:      student.ID,
		Score:          finalScore,
		Evaluation:     evaluation,
		TimeSpentMin:   randIntn(20) + 10,
		IsAssignedTest: t.IsAssigned,
		CompletedAt:    time.Now().UTC(),
	}
	res, err = svc.repo.CreateResult(ctx, res)
	if err != nil {
		return TestResult{}, err
	}

	if t.IsAssigned {
		if err := svc.repo.SetCompleted(ctx, student.ID, t.ID); err != nil {
			return TestResult{}, err
		}
	}
	return res, nil
}

// History returns the student's past results, most recent first.
func (svc *Service) History(ctx context.Context, studentID string) ([]TestResult, error) {
	return svc.repo.QueryResultsByStudent(ctx, studentID)
}

// StudentStats derives dashboard statistics for a student.
func (svc *Service) StudentStats(ctx context.Context, student user.User) (Stats, error) {
	history, err := svc.repo.QueryResultsByStudent(ctx, student.ID)
	if err != nil {
		return Stats{}, err
	}
	assigned, err := svc.repo.QueryAssignedTests(ctx, student.Section)
	if err != nil {
		return Stats{}, err
	}
	completions, err := svc.repo.GetCompletions(ctx, student.ID)
	if err != nil {
		return Stats{}, err
	}
	var completedAssigned int
	for _, t := range assigned {
		if completions[t.ID] {
			completedAssigned++
		}
	}
	return ComputeStats(history, len(assigned), completedAssigned), nil
}

func (svc *Service) Sections(ctx context.Context) ([]Section, error) {
	return svc.repo.QuerySections(ctx)
}

func (svc *Service) AddSection(ctx context.Context, ns NewSection) (Section, error) {
	s, err := svc.repo.CreateSection(ctx, Section{Name: ns.Name, StudentCount: ns.StudentCount})
	if err != nil {
		if err == ErrSectionExists {
			return Section{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return Section{}, err
	}
	return s, nil
}
