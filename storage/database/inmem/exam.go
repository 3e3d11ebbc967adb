package inmemdb

import (
	"context"
	"sort"

	"github.com/edlabhq/exameval/core/exam"
)

type examRepository struct {
	db *examTables
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db.exam}
}

func (repo *examRepository) CreateTest(ctx context.Context, t exam.Test) (exam.Test, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.tests[t.ID] = &t
	return t, nil
}

func (repo *examRepository) GetTestByID(ctx context.Context, id string) (exam.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tests[id]; ok {
		return *t, nil
	}
	return exam.Test{}, exam.ErrTestNotFound
}

func (repo *examRepository) UpdateTestAssignment(ctx context.Context, t exam.Test) (exam.Test, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.tests[t.ID]
	if !ok {
		return exam.Test{}, exam.ErrTestNotFound
	}
	orig.IsAssigned = t.IsAssigned
	orig.AssignedTo = t.AssignedTo
	orig.AssignedAt = t.AssignedAt
	orig.DueDate = t.DueDate
	return *orig, nil
}

func (repo *examRepository) queryTests(match func(*exam.Test) bool) []exam.Test {
	var tests []exam.Test
	for _, t := range repo.db.tests {
		if match(t) {
			tests = append(tests, *t)
		}
	}
	return tests
}

func (repo *examRepository) QueryTestsByCreator(ctx context.Context, creatorID string) ([]exam.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tests := repo.queryTests(func(t *exam.Test) bool { return t.CreatedBy == creatorID })
	sort.Slice(tests, func(i, j int) bool { return tests[i].CreatedAt.After(tests[j].CreatedAt) })
	return tests, nil
}

func (repo *examRepository) QueryPracticeTests(ctx context.Context) ([]exam.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tests := repo.queryTests(func(t *exam.Test) bool { return t.IsPractice })
	sort.Slice(tests, func(i, j int) bool { return tests[i].CreatedAt.After(tests[j].CreatedAt) })
	return tests, nil
}

func (repo *examRepository) QueryAssignedTests(ctx context.Context, section string) ([]exam.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tests := repo.queryTests(func(t *exam.Test) bool { return t.VisibleToSection(section) })
	sort.Slice(tests, func(i, j int) bool { return tests[i].AssignedAt.After(tests[j].AssignedAt) })
	return tests, nil
}

func (repo *examRepository) CreateResult(ctx context.Context, res exam.TestResult) (exam.TestResult, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.results = append(repo.db.results, res)
	return res, nil
}

func (repo *examRepository) QueryResultsByStudent(ctx context.Context, studentID string) ([]exam.TestResult, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var results []exam.TestResult
	for _, res := range repo.db.results {
		if res.StudentID == studentID {
			results = append(results, res)
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].CompletedAt.After(results[j].CompletedAt) })
	return results, nil
}

func (repo *examRepository) GetCompletions(ctx context.Context, studentID string) (map[string]bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	completions := make(map[string]bool, len(repo.db.completions[studentID]))
	for testID, done := range repo.db.completions[studentID] {
		completions[testID] = done
	}
	return completions, nil
}

func (repo *examRepository) SetCompleted(ctx context.Context, studentID, testID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.db.completions[studentID] == nil {
		repo.db.completions[studentID] = make(map[string]bool)
	}
	repo.db.completions[studentID][testID] = true
	return nil
}

func (repo *examRepository) QuerySections(ctx context.Context) ([]exam.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	names := append([]string(nil), repo.db.sectionIdx...)
	sort.Strings(names)

	sections := make([]exam.Section, 0, len(names))
	for _, name := range names {
		sections = append(sections, *repo.db.sections[name])
	}
	return sections, nil
}

func (repo *examRepository) CreateSection(ctx context.Context, s exam.Section) (exam.Section, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.sections[s.Name]; ok {
		return exam.Section{}, exam.ErrSectionExists
	}
	repo.db.sections[s.Name] = &s
	repo.db.sectionIdx = append(repo.db.sectionIdx, s.Name)
	return s, nil
}
