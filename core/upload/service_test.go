package upload_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edlabhq/exameval/core"
	"github.com/edlabhq/exameval/core/upload"
	"github.com/edlabhq/exameval/core/user"
	emailsvc "github.com/edlabhq/exameval/services/email"
	inmemdb "github.com/edlabhq/exameval/storage/database/inmem"
)

var (
	jane    = user.User{ID: "s1", Name: "Jane Mwamba", Email: "jane@test.cd", Role: user.RoleStudent, Section: "10A"}
	teacher = user.User{ID: "t1", Name: "Mr. Kabongo", Email: "kabongo@test.cd", Role: user.RoleTeacher}
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func setup(t *testing.T) (*upload.Service, upload.Repository) {
	t.Helper()

	conf := &core.Config{
		AppName:         "ExamEval",
		FrontendBaseURL: "http://localhost:3000",
		Upload:          core.UploadConfig{MaxFileSize: 1024},
	}

	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewUploadRepository(db)

	emailsvc.ClearSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	return upload.NewService(repo, mailSvc, nopLogger{}, conf), repo
}

func newUpload(files ...upload.NewFile) upload.NewUpload {
	return upload.NewUpload{
		StudentInfo: upload.StudentInfo{Name: "Jane Mwamba", Class: "10A", Subject: "Mathematics"},
		UploadType:  upload.TypeAnswer,
		Files:       files,
	}
}

func newFile(name string, size int64) upload.NewFile {
	return upload.NewFile{
		Name:        name,
		ContentType: "application/pdf",
		Size:        size,
		Data:        bytes.Repeat([]byte("x"), int(size)),
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores accepted files with distinct ids", func(t *testing.T) {
		svc, repo := setup(t)

		up, err := svc.Create(ctx, jane, newUpload(newFile("a.pdf", 10), newFile("b.pdf", 20)))
		require.NoError(t, err)
		assert.Equal(t, upload.KindStudent, up.Kind)
		assert.Equal(t, jane.Email, up.UploadedBy)
		require.Len(t, up.Files, 2)
		assert.NotEqual(t, up.Files[0].ID, up.Files[1].ID)

		for _, ref := range up.Files {
			blob, err := repo.GetFile(ctx, ref.ID)
			require.NoError(t, err)
			assert.Equal(t, ref.Name, blob.Name)
			assert.Equal(t, ref.Size, blob.Size)
		}
	})

	t.Run("skips oversize and empty files", func(t *testing.T) {
		svc, _ := setup(t)

		up, err := svc.Create(ctx, jane, newUpload(
			newFile("ok.pdf", 10),
			newFile("huge.pdf", 2048),
			newFile("empty.pdf", 0),
		))
		require.NoError(t, err)
		require.Len(t, up.Files, 1)
		assert.Equal(t, "ok.pdf", up.Files[0].Name)
	})

	t.Run("rejects when no file is accepted", func(t *testing.T) {
		svc, _ := setup(t)

		_, err := svc.Create(ctx, jane, newUpload(newFile("huge.pdf", 2048)))
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Len(t, vErr.Fields, 1)
		assert.Equal(t, "files", vErr.Fields[0].Field)
	})

	t.Run("teacher uploads get teacher kind", func(t *testing.T) {
		svc, _ := setup(t)

		up, err := svc.Create(ctx, teacher, newUpload(newFile("q.pdf", 10)))
		require.NoError(t, err)
		assert.Equal(t, upload.KindTeacher, up.Kind)
	})

	t.Run("evaluation result arrives with an email", func(t *testing.T) {
		svc, _ := setup(t)

		up, err := svc.Create(ctx, jane, newUpload(newFile("a.pdf", 10)))
		require.NoError(t, err)
		assert.Nil(t, up.Result)

		assert.Eventually(t, func() bool {
			got, err := svc.GetByID(ctx, up.ID)
			return err == nil && got.Result != nil
		}, 2*time.Second, 10*time.Millisecond)

		got, err := svc.GetByID(ctx, up.ID)
		require.NoError(t, err)
		assert.Contains(t, []int{85, 92, 78}, got.Result.TotalMarks)
		assert.Contains(t, []string{"A", "A+", "B+"}, got.Result.Grade)
		assert.NotEmpty(t, got.Result.Strengths)

		assert.Eventually(t, func() bool {
			for _, msg := range emailsvc.GetSentMessages() {
				if msg.Subject == "Your evaluation is ready" {
					return true
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestService_QueryAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	first, err := svc.Create(ctx, jane, newUpload(newFile("first.pdf", 10)))
	require.NoError(t, err)
	second, err := svc.Create(ctx, jane, newUpload(newFile("second.pdf", 10)))
	require.NoError(t, err)
	_, err = svc.Create(ctx, teacher, newUpload(newFile("questions.pdf", 10)))
	require.NoError(t, err)

	t.Run("most recent first, filtered by kind and uploader", func(t *testing.T) {
		uploads, err := svc.Query(ctx, upload.KindStudent, jane.Email)
		require.NoError(t, err)
		require.Len(t, uploads, 2)
		assert.Equal(t, second.ID, uploads[0].ID)
		assert.Equal(t, first.ID, uploads[1].ID)

		uploads, err = svc.Query(ctx, upload.KindTeacher, "")
		require.NoError(t, err)
		require.Len(t, uploads, 1)
	})

	t.Run("delete keeps the file blobs", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, first.ID))

		_, err := svc.GetByID(ctx, first.ID)
		assert.Equal(t, upload.ErrNotFound, err)

		blob, err := repo.GetFile(ctx, first.Files[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "first.pdf", blob.Name)
	})

	t.Run("deleting an unknown upload fails", func(t *testing.T) {
		assert.Equal(t, upload.ErrNotFound, svc.Delete(ctx, "nope"))
	})
}
