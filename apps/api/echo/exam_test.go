package echoapi

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edlabhq/exameval/core/exam"
	"github.com/edlabhq/exameval/core/user"
)

func newEssayTest(title, subject string, questions ...exam.NewQuestion) exam.NewTest {
	return exam.NewTest{
		Title:     title,
		Subject:   subject,
		Questions: questions,
	}
}

func (env *testEnv) createTest(t *testing.T, teacher user.User, nt exam.NewTest) exam.Test {
	t.Helper()

	body := marshallObj(t, nt)
	req, rec := newAuthRequest(http.MethodPost, "/api/v1/tests", getToken(t, teacher), body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created exam.Test
	decodeData(t, rec, &created)
	return created
}

func (env *testEnv) assignTest(t *testing.T, teacher user.User, testID, section string) exam.Test {
	t.Helper()

	body := marshallObj(t, exam.AssignTest{Section: section})
	req, rec := newAuthRequest(http.MethodPut, "/api/v1/tests/"+testID+"/assign", getToken(t, teacher), body)
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var assigned exam.Test
	decodeData(t, rec, &assigned)
	return assigned
}

func (env *testEnv) studentTests(t *testing.T, student user.User, tab string) []exam.StudentTest {
	t.Helper()

	path := "/api/v1/tests"
	if tab != "" {
		path += "?tab=" + tab
	}
	req, rec := newAuthRequest(http.MethodGet, path, getToken(t, student))
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tests []exam.StudentTest
	decodeData(t, rec, &tests)
	return tests
}

func TestExamAPI_CreateTest(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "Mr. Kabongo", "kabongo@test.cd", testPassword, user.RoleTeacher, "", true)
	student := env.createUser(t, "Jane Mwamba", "jane@test.cd", testPassword, user.RoleStudent, "10A", true)

	t.Run("defaults are applied", func(t *testing.T) {
		created := env.createTest(t, teacher, newEssayTest("Algebra Basics", "Mathematics",
			exam.NewQuestion{Text: "Explain linear equations."},
			exam.NewQuestion{Text: "Describe quadratic equations.", Marks: 50, WordLimit: 150},
		))

		assert.NotEmpty(t, created.ID)
		assert.Equal(t, exam.DifficultyMedium, created.Difficulty)
		assert.Equal(t, 30, created.Duration)
		assert.Equal(t, 150, created.TotalMarks)
		assert.Equal(t, teacher.ID, created.CreatedBy)
		assert.Equal(t, teacher.Name, created.CreatedName)
		assert.False(t, created.IsAssigned)

		require.Len(t, created.Questions, 2)
		assert.Equal(t, 1, created.Questions[0].ID)
		assert.Equal(t, exam.QuestionEssay, created.Questions[0].Type)
		assert.Equal(t, 100, created.Questions[0].Marks)
		assert.Equal(t, 200, created.Questions[0].WordLimit)
		assert.Equal(t, 2, created.Questions[1].ID)
		assert.Equal(t, 50, created.Questions[1].Marks)
		assert.Equal(t, 150, created.Questions[1].WordLimit)
	})

	t.Run("no questions fails", func(t *testing.T) {
		body := marshallObj(t, newEssayTest("Empty Test", "Mathematics"))
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/tests", getToken(t, teacher), body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, errorFields(t, rec), "questions")
	})

	t.Run("student is denied", func(t *testing.T) {
		body := marshallObj(t, newEssayTest("Rogue Test", "Mathematics", exam.NewQuestion{Text: "Q?"}))
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/tests", getToken(t, student), body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

// TestExamAPI_AssignedFlow covers the full teacher to student round trip:
// create, assign to a section, list, submit and check history and stats.
func TestExamAPI_AssignedFlow(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "Mr. Kabongo", "kabongo@test.cd", testPassword, user.RoleTeacher, "", true)
	jane := env.createUser(t, "Jane Mwamba", "jane@test.cd", testPassword, user.RoleStudent, "10A", true)
	eli := env.createUser(t, "Eli Tshibangu", "eli@test.cd", testPassword, user.RoleStudent, "11B", true)

	created := env.createTest(t, teacher, newEssayTest("Physics Midterm", "Physics",
		exam.NewQuestion{Text: "Explain Newton's second law.", WordLimit: 100},
		exam.NewQuestion{Text: "Describe conservation of energy.", WordLimit: 100},
	))

	assigned := env.assignTest(t, teacher, created.ID, "10A")
	assert.True(t, assigned.IsAssigned)
	assert.Equal(t, []string{"10A"}, assigned.AssignedTo)
	assert.False(t, assigned.AssignedAt.IsZero())
	assert.WithinDuration(t, assigned.AssignedAt.Add(7*24*time.Hour), assigned.DueDate, time.Second)

	// re-assigning the same section is a no-op
	again := env.assignTest(t, teacher, created.ID, "10A")
	assert.Equal(t, []string{"10A"}, again.AssignedTo)

	t.Run("student in section sees the test", func(t *testing.T) {
		tests := env.studentTests(t, jane, exam.TabAssigned)
		require.Len(t, tests, 1)
		assert.Equal(t, created.ID, tests[0].ID)
		assert.False(t, tests[0].IsCompleted)
		assert.Equal(t, teacher.Name, tests[0].AssignedBy)
	})

	t.Run("student in another section does not", func(t *testing.T) {
		assert.Empty(t, env.studentTests(t, eli, exam.TabAssigned))
	})

	t.Run("teacher sees their created tests", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/tests", getToken(t, teacher))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var tests []exam.Test
		decodeData(t, rec, &tests)
		require.Len(t, tests, 1)
		assert.Equal(t, created.ID, tests[0].ID)
	})

	var result exam.TestResult
	t.Run("student submits", func(t *testing.T) {
		answer := strings.Repeat("force equals mass times acceleration ", 20)
		body := marshallObj(t, exam.NewSubmission{Answers: map[int]string{1: answer, 2: answer}})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/tests/"+created.ID+"/submissions", getToken(t, jane), body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decodeData(t, rec, &result)
		assert.Equal(t, created.ID, result.TestID)
		assert.Equal(t, jane.ID, result.StudentID)
		assert.True(t, result.IsAssignedTest)
		require.Len(t, result.Evaluation, 2)
		// both answers are over the word limit so only the random quality part varies
		for _, qres := range result.Evaluation {
			assert.GreaterOrEqual(t, qres.Score, 60)
			assert.LessOrEqual(t, qres.Score, 100)
		}
		assert.GreaterOrEqual(t, result.TimeSpentMin, 10)
		assert.Less(t, result.TimeSpentMin, 30)
	})

	t.Run("submission moves the test to completed", func(t *testing.T) {
		assert.Empty(t, env.studentTests(t, jane, exam.TabAssigned))

		completed := env.studentTests(t, jane, exam.TabCompleted)
		require.Len(t, completed, 1)
		assert.Equal(t, created.ID, completed[0].ID)
		assert.True(t, completed[0].IsCompleted)
	})

	t.Run("retaking a completed assigned test fails", func(t *testing.T) {
		body := marshallObj(t, exam.NewSubmission{Answers: map[int]string{1: "again"}})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/tests/"+created.ID+"/submissions", getToken(t, jane), body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, errorMessage(t, rec), "already been completed")
	})

	t.Run("student outside the section cannot submit", func(t *testing.T) {
		body := marshallObj(t, exam.NewSubmission{Answers: map[int]string{1: "hello"}})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/tests/"+created.ID+"/submissions", getToken(t, eli), body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("history lists the result", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/tests/history", getToken(t, jane))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var history []exam.TestResult
		decodeData(t, rec, &history)
		require.Len(t, history, 1)
		assert.Equal(t, result.ID, history[0].ID)
		assert.Equal(t, result.Score, history[0].Score)
	})

	t.Run("stats reflect the completion", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/tests/stats", getToken(t, jane))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats exam.Stats
		decodeData(t, rec, &stats)
		assert.Equal(t, 1, stats.TotalTestsTaken)
		assert.Equal(t, result.Score, stats.AverageScore)
		assert.Equal(t, "Physics", stats.BestSubject)
		assert.Equal(t, 1, stats.CompletedAssignedTests)
		assert.Equal(t, 0, stats.PendingTests)
	})

	t.Run("empty stats for a fresh student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/tests/stats", getToken(t, eli))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats exam.Stats
		decodeData(t, rec, &stats)
		assert.Zero(t, stats.TotalTestsTaken)
		assert.Zero(t, stats.AverageScore)
		assert.Empty(t, stats.BestSubject)
	})

	t.Run("assigning an unknown test fails", func(t *testing.T) {
		body := marshallObj(t, exam.AssignTest{Section: "10A"})
		req, rec := newAuthRequest(http.MethodPut, "/api/v1/tests/not-a-test/assign", getToken(t, teacher), body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestExamAPI_AllStudentsAssignment(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "Mr. Kabongo", "kabongo@test.cd", testPassword, user.RoleTeacher, "", true)
	eli := env.createUser(t, "Eli Tshibangu", "eli@test.cd", testPassword, user.RoleStudent, "11B", true)

	created := env.createTest(t, teacher, newEssayTest("School-wide Quiz", "General Knowledge",
		exam.NewQuestion{Text: "What is photosynthesis?"},
	))
	env.assignTest(t, teacher, created.ID, exam.SectionAllStudents)

	tests := env.studentTests(t, eli, exam.TabAssigned)
	require.Len(t, tests, 1)
	assert.Equal(t, created.ID, tests[0].ID)
}

func TestExamAPI_Sections(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "Mr. Kabongo", "kabongo@test.cd", testPassword, user.RoleTeacher, "", true)
	student := env.createUser(t, "Jane Mwamba", "jane@test.cd", testPassword, user.RoleStudent, "10A", true)

	t.Run("create and list", func(t *testing.T) {
		body := marshallObj(t, exam.NewSection{Name: "10A", StudentCount: 28})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/sections", getToken(t, teacher), body)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/api/v1/sections", getToken(t, student))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var sections []exam.Section
		decodeData(t, rec, &sections)
		require.Len(t, sections, 1)
		assert.Equal(t, "10A", sections[0].Name)
		assert.Equal(t, 28, sections[0].StudentCount)
	})

	t.Run("duplicate name fails", func(t *testing.T) {
		body := marshallObj(t, exam.NewSection{Name: "10A"})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/sections", getToken(t, teacher), body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, exam.ErrSectionExists.Error(), errorFields(t, rec)["name"])
	})

	t.Run("student cannot create", func(t *testing.T) {
		body := marshallObj(t, exam.NewSection{Name: "12C"})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/sections", getToken(t, student), body)
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}
