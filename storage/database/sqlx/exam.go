package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edlabhq/exameval/core/exam"
)

type examRepository struct {
	db *sqlx.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sql.DB) *examRepository {
	return &examRepository{db: sqlx.NewDb(db, "postgres")}
}

type testRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Subject     string         `db:"subject"`
	Description null.String    `db:"description"`
	Duration    int            `db:"duration"`
	TotalMarks  int            `db:"total_marks"`
	Difficulty  string         `db:"difficulty"`
	Questions   []byte         `db:"questions"`
	IsPractice  bool           `db:"is_practice"`
	IsAssigned  bool           `db:"is_assigned"`
	AssignedTo  pq.StringArray `db:"assigned_to"`
	AssignedAt  null.Time      `db:"assigned_at"`
	DueDate     null.Time      `db:"due_date"`
	CreatedBy   null.String    `db:"created_by"`
	CreatedName null.String    `db:"created_by_name"`
	CreatedAt   null.Time      `db:"created_at"`
}

func (repo examRepository) toTestRow(t exam.Test) (testRow, error) {
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return testRow{}, errors.Wrap(err, "encoding questions")
	}
	return testRow{
		ID:          t.ID,
		Title:       t.Title,
		Subject:     t.Subject,
		Description: null.NewString(t.Description, t.Description != ""),
		Duration:    t.Duration,
		TotalMarks:  t.TotalMarks,
		Difficulty:  t.Difficulty,
		Questions:   questions,
		IsPractice:  t.IsPractice,
		IsAssigned:  t.IsAssigned,
		AssignedTo:  t.AssignedTo,
		AssignedAt:  null.NewTime(t.AssignedAt.UTC(), !t.AssignedAt.IsZero()),
		DueDate:     null.NewTime(t.DueDate.UTC(), !t.DueDate.IsZero()),
		CreatedBy:   null.NewString(t.CreatedBy, t.CreatedBy != ""),
		CreatedName: null.NewString(t.CreatedName, t.CreatedName != ""),
		CreatedAt:   null.NewTime(t.CreatedAt.UTC(), !t.CreatedAt.IsZero()),
	}, nil
}

func (repo examRepository) fromTestRow(row testRow) (exam.Test, error) {
	t := exam.Test{
		ID:          row.ID,
		Title:       row.Title,
		Subject:     row.Subject,
		Description: row.Description.String,
		Duration:    row.Duration,
		TotalMarks:  row.TotalMarks,
		Difficulty:  row.Difficulty,
		IsPractice:  row.IsPractice,
		IsAssigned:  row.IsAssigned,
		AssignedTo:  row.AssignedTo,
		AssignedAt:  row.AssignedAt.Time,
		DueDate:     row.DueDate.Time,
		CreatedBy:   row.CreatedBy.String,
		CreatedName: row.CreatedName.String,
		CreatedAt:   row.CreatedAt.Time,
	}
	if err := json.Unmarshal(row.Questions, &t.Questions); err != nil {
		return exam.Test{}, errors.Wrap(err, "decoding questions")
	}
	return t, nil
}

func (repo examRepository) fromTestRows(rows []testRow) ([]exam.Test, error) {
	tests := make([]exam.Test, 0, len(rows))
	for _, row := range rows {
		t, err := repo.fromTestRow(row)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, nil
}

func (repo examRepository) CreateTest(ctx context.Context, t exam.Test) (exam.Test, error) {
	row, err := repo.toTestRow(t)
	if err != nil {
		return exam.Test{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO test (id, title, subject, description, duration, total_marks, difficulty, questions,
		                  is_practice, is_assigned, assigned_to, assigned_at, due_date, created_by, created_by_name, created_at)
		VALUES (:id, :title, :subject, :description, :duration, :total_marks, :difficulty, :questions,
		        :is_practice, :is_assigned, :assigned_to, :assigned_at, :due_date, :created_by, :created_by_name, :created_at)`,
		row,
	)
	if err != nil {
		return exam.Test{}, errors.Wrap(err, "inserting test")
	}
	return t, nil
}

func (repo examRepository) GetTestByID(ctx context.Context, id string) (exam.Test, error) {
	var row testRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM test WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return exam.Test{}, exam.ErrTestNotFound
		}
		return exam.Test{}, errors.Wrap(err, "finding test by ID")
	}
	return repo.fromTestRow(row)
}

func (repo examRepository) UpdateTestAssignment(ctx context.Context, t exam.Test) (exam.Test, error) {
	row, err := repo.toTestRow(t)
	if err != nil {
		return exam.Test{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		UPDATE test
		SET is_assigned = :is_assigned, assigned_to = :assigned_to, assigned_at = :assigned_at, due_date = :due_date
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return exam.Test{}, errors.Wrap(err, "updating test assignment")
	}
	return t, nil
}

func (repo examRepository) QueryTestsByCreator(ctx context.Context, creatorID string) ([]exam.Test, error) {
	var rows []testRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM test WHERE created_by = $1 ORDER BY created_at DESC`, creatorID)
	if err != nil {
		return nil, errors.Wrap(err, "querying tests by creator")
	}
	return repo.fromTestRows(rows)
}

func (repo examRepository) QueryPracticeTests(ctx context.Context) ([]exam.Test, error) {
	var rows []testRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM test WHERE is_practice ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying practice tests")
	}
	return repo.fromTestRows(rows)
}

func (repo examRepository) QueryAssignedTests(ctx context.Context, section string) ([]exam.Test, error) {
	var rows []testRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM test
		WHERE is_assigned AND (assigned_to @> ARRAY[$1] OR assigned_to @> ARRAY[$2])
		ORDER BY assigned_at DESC`,
		section, exam.SectionAllStudents,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying assigned tests")
	}
	return repo.fromTestRows(rows)
}

type resultRow struct {
	ID             string    `db:"id"`
	TestID         string    `db:"test_id"`
	TestTitle      string    `db:"test_title"`
	Subject        string    `db:"subject"`
	StudentID      string    `db:"student_id"`
	Score          int       `db:"score"`
	Evaluation     []byte    `db:"evaluation"`
	TimeSpentMin   int       `db:"time_spent_min"`
	IsAssignedTest bool      `db:"is_assigned_test"`
	CompletedAt    null.Time `db:"completed_at"`
}

func (repo examRepository) CreateResult(ctx context.Context, res exam.TestResult) (exam.TestResult, error) {
	evaluation, err := json.Marshal(res.Evaluation)
	if err != nil {
		return exam.TestResult{}, errors.Wrap(err, "encoding evaluation")
	}
	row := resultRow{
		ID:             res.ID,
		TestID:         res.TestID,
		TestTitle:      res.TestTitle,
		Subject:        res.Subject,
		StudentID:      res.StudentID,
		Score:          res.Score,
		Evaluation:     evaluation,
		TimeSpentMin:   res.TimeSpentMin,
		IsAssignedTest: res.IsAssignedTest,
		CompletedAt:    null.NewTime(res.CompletedAt.UTC(), !res.CompletedAt.IsZero()),
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO test_result (id, test_id, test_title, subject, student_id, score, evaluation, time_spent_min, is_assigned_test, completed_at)
		VALUES (:id, :test_id, :test_title, :subject, :student_id, :score, :evaluation, :time_spent_min, :is_assigned_test, :completed_at)`,
		row,
	)
	if err != nil {
		return exam.TestResult{}, errors.Wrap(err, "inserting test result")
	}
	return res, nil
}

func (repo examRepository) QueryResultsByStudent(ctx context.Context, studentID string) ([]exam.TestResult, error) {
	var rows []resultRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM test_result WHERE student_id = $1 ORDER BY completed_at DESC`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying test results")
	}

	results := make([]exam.TestResult, 0, len(rows))
	for _, row := range rows {
		res := exam.TestResult{
			ID:             row.ID,
			TestID:         row.TestID,
			TestTitle:      row.TestTitle,
			Subject:        row.Subject,
			StudentID:      row.StudentID,
			Score:          row.Score,
			TimeSpentMin:   row.TimeSpentMin,
			IsAssignedTest: row.IsAssignedTest,
			CompletedAt:    row.CompletedAt.Time,
		}
		if err = json.Unmarshal(row.Evaluation, &res.Evaluation); err != nil {
			return nil, errors.Wrap(err, "decoding evaluation")
		}
		results = append(results, res)
	}
	return results, nil
}

func (repo examRepository) GetCompletions(ctx context.Context, studentID string) (map[string]bool, error) {
	var testIDs []string
	err := repo.db.SelectContext(ctx, &testIDs, `SELECT test_id FROM test_completion WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying test completions")
	}
	completions := make(map[string]bool, len(testIDs))
	for _, id := range testIDs {
		completions[id] = true
	}
	return completions, nil
}

func (repo examRepository) SetCompleted(ctx context.Context, studentID, testID string) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO test_completion (student_id, test_id) VALUES ($1, $2)
		ON CONFLICT (student_id, test_id) DO NOTHING`,
		studentID, testID,
	)
	return errors.Wrap(err, "marking test completed")
}

func (repo examRepository) QuerySections(ctx context.Context) ([]exam.Section, error) {
	var sections []exam.Section
	err := repo.db.SelectContext(ctx, &sections, `
		SELECT name, student_count AS studentcount, avg_score AS avgscore FROM section ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	return sections, nil
}

func (repo examRepository) CreateSection(ctx context.Context, s exam.Section) (exam.Section, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO section (name, student_count, avg_score) VALUES ($1, $2, $3)`,
		s.Name, s.StudentCount, s.AvgScore,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return exam.Section{}, exam.ErrSectionExists
		}
		return exam.Section{}, errors.Wrap(err, "inserting section")
	}
	return s, nil
}
