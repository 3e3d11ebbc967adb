package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edlabhq/exameval/core"
	"github.com/edlabhq/exameval/core/exam"
	"github.com/edlabhq/exameval/core/upload"
	"github.com/edlabhq/exameval/core/user"
	emailsvc "github.com/edlabhq/exameval/services/email"
	inmemdb "github.com/edlabhq/exameval/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testEnv struct {
	server     *Server
	conf       *core.Config
	usrSvc     *user.Service
	examSvc    *exam.Service
	uploadSvc  *upload.Service
	usrRepo    user.Repository
	examRepo   exam.Repository
	uploadRepo upload.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conf := &core.Config{
		TestMode:        true,
		Env:             "TEST",
		AppName:         "ExamEval",
		SecretKey:       []byte("secret"),
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			JWTExpirationDelta: 10 * time.Minute,
		},
		Upload: core.UploadConfig{
			MaxFileSize: 10 << 20,
		},
	}

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("newTestEnv() failed: %v", err)
	}

	logger := nopLogger{}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ClearSentMessages()

	env := &testEnv{
		conf:       conf,
		usrRepo:    inmemdb.NewUserRepository(db),
		examRepo:   inmemdb.NewExamRepository(db),
		uploadRepo: inmemdb.NewUploadRepository(db),
	}
	env.usrSvc = user.NewService(env.usrRepo, mailSvc, conf)
	env.examSvc = exam.NewService(env.examRepo, exam.NewEssayEvaluator())
	env.uploadSvc = upload.NewService(env.uploadRepo, mailSvc, logger, conf)

	env.server = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        env.usrSvc,
		ExamSvc:        env.examSvc,
		UploadSvc:      env.uploadSvc,
		DisableReqLogs: true,
	})
	return env
}

func (env *testEnv) createUser(t *testing.T, name, email, pwd, role, section string, active bool) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		Section:   section,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(active)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

// testResponse is the decoded envelope of either outcome.
type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	Error   json.RawMessage `json:"error"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) testResponse {
	t.Helper()

	var res testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decodeResponse() failed: %v; body: %s", err, rec.Body.String())
	}
	return res
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) testResponse {
	t.Helper()

	res := decodeResponse(t, rec)
	if err := json.Unmarshal(res.Data, out); err != nil {
		t.Fatalf("decodeData() failed: %v; data: %s", err, string(res.Data))
	}
	return res
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	res := decodeResponse(t, rec)
	var msg string
	if err := json.Unmarshal(res.Error, &msg); err != nil {
		return string(res.Error)
	}
	return msg
}

func errorFields(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	res := decodeResponse(t, rec)
	flds := make(map[string]string)
	if err := json.Unmarshal(res.Error, &flds); err != nil {
		t.Fatalf("errorFields() failed: %v; error: %s", err, string(res.Error))
	}
	return flds
}
