package echoapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edlabhq/exameval/core/upload"
	"github.com/edlabhq/exameval/core/user"
)

func newUploadRequest(t *testing.T, token string, fields map[string]string, files map[string][]byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, val := range fields {
		require.NoError(t, w.WriteField(name, val))
	}
	for name, content := range files {
		fw, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req, httptest.NewRecorder()
}

var uploadFields = map[string]string{
	"name":        "Jane Mwamba",
	"class":       "10A",
	"subject":     "Mathematics",
	"upload_type": upload.TypeAnswer,
}

func TestUploadAPI_Create(t *testing.T) {
	env := newTestEnv(t)
	student := env.createUser(t, "Jane Mwamba", "jane@test.cd", testPassword, user.RoleStudent, "10A", true)
	teacher := env.createUser(t, "Mr. Kabongo", "kabongo@test.cd", testPassword, user.RoleTeacher, "", true)

	t.Run("ok and evaluated asynchronously", func(t *testing.T) {
		req, rec := newUploadRequest(t, getToken(t, student), uploadFields, map[string][]byte{
			"answers.pdf": []byte("my answers"),
		})
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var up upload.Upload
		decodeData(t, rec, &up)
		assert.NotEmpty(t, up.ID)
		assert.Equal(t, upload.KindStudent, up.Kind)
		assert.Equal(t, student.Email, up.UploadedBy)
		assert.Nil(t, up.Result)
		require.Len(t, up.Files, 1)
		assert.Equal(t, "answers.pdf", up.Files[0].Name)
		assert.Equal(t, upload.TypeAnswer, up.Files[0].UploadType)

		// the canned result arrives shortly after; delay is zero in tests
		assert.Eventually(t, func() bool {
			got, err := env.uploadSvc.GetByID(req.Context(), up.ID)
			return err == nil && got.Result != nil
		}, 2*time.Second, 10*time.Millisecond)

		got, err := env.uploadSvc.GetByID(req.Context(), up.ID)
		require.NoError(t, err)
		assert.Contains(t, []int{85, 92, 78}, got.Result.TotalMarks)
		assert.NotEmpty(t, got.Result.Grade)
	})

	t.Run("teacher upload gets teacher kind", func(t *testing.T) {
		req, rec := newUploadRequest(t, getToken(t, teacher), map[string]string{
			"name":        "Class 10A",
			"class":       "10A",
			"subject":     "Mathematics",
			"upload_type": upload.TypeQuestion,
		}, map[string][]byte{"questions.pdf": []byte("question paper")})
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var up upload.Upload
		decodeData(t, rec, &up)
		assert.Equal(t, upload.KindTeacher, up.Kind)
	})

	t.Run("missing upload type fails", func(t *testing.T) {
		req, rec := newUploadRequest(t, getToken(t, student), map[string]string{
			"name":    "Jane Mwamba",
			"class":   "10A",
			"subject": "Mathematics",
		}, map[string][]byte{"answers.pdf": []byte("my answers")})
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, errorFields(t, rec), "upload_type")
	})

	t.Run("empty files are rejected", func(t *testing.T) {
		req, rec := newUploadRequest(t, getToken(t, student), uploadFields, map[string][]byte{
			"empty.pdf": {},
		})
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, errorFields(t, rec), "files")
	})
}

func TestUploadAPI_QueryAndDownload(t *testing.T) {
	env := newTestEnv(t)
	jane := env.createUser(t, "Jane Mwamba", "jane@test.cd", testPassword, user.RoleStudent, "10A", true)
	eli := env.createUser(t, "Eli Tshibangu", "eli@test.cd", testPassword, user.RoleStudent, "11B", true)
	teacher := env.createUser(t, "Mr. Kabongo", "kabongo@test.cd", testPassword, user.RoleTeacher, "", true)

	req, rec := newUploadRequest(t, getToken(t, jane), uploadFields, map[string][]byte{
		"answers.pdf": []byte("my answers"),
	})
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var up upload.Upload
	decodeData(t, rec, &up)

	t.Run("student sees only their own uploads", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/uploads", getToken(t, jane))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var uploads []upload.Upload
		decodeData(t, rec, &uploads)
		require.Len(t, uploads, 1)
		assert.Equal(t, up.ID, uploads[0].ID)

		req, rec = newAuthRequest(http.MethodGet, "/api/v1/uploads", getToken(t, eli))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		decodeData(t, rec, &uploads)
		assert.Empty(t, uploads)
	})

	t.Run("teacher lists student uploads by default", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/uploads", getToken(t, teacher))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var uploads []upload.Upload
		decodeData(t, rec, &uploads)
		require.Len(t, uploads, 1)
		assert.Equal(t, up.ID, uploads[0].ID)
	})

	t.Run("download", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/uploads/files/"+up.Files[0].ID, getToken(t, teacher))
		env.server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "my answers", rec.Body.String())
		assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `filename="answers.pdf"`)
	})

	t.Run("download unknown file fails", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/uploads/files/nope", getToken(t, teacher))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUploadAPI_Destroy(t *testing.T) {
	env := newTestEnv(t)
	jane := env.createUser(t, "Jane Mwamba", "jane@test.cd", testPassword, user.RoleStudent, "10A", true)
	eli := env.createUser(t, "Eli Tshibangu", "eli@test.cd", testPassword, user.RoleStudent, "11B", true)

	req, rec := newUploadRequest(t, getToken(t, jane), uploadFields, map[string][]byte{
		"answers.pdf": []byte("my answers"),
	})
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var up upload.Upload
	decodeData(t, rec, &up)

	t.Run("other student is denied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/v1/uploads/"+up.ID, getToken(t, eli))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("owner deletes; file blob survives", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/v1/uploads/"+up.ID, getToken(t, jane))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/api/v1/uploads/"+up.ID, getToken(t, jane))
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		// deleting the record keeps the blob downloadable
		req, rec = newAuthRequest(http.MethodGet, "/api/v1/uploads/files/"+up.Files[0].ID, getToken(t, jane))
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
