package echoapi

import (
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edlabhq/exameval/core/upload"
	"github.com/edlabhq/exameval/core/user"
)

type uploadApi struct {
	svc    *upload.Service
	usrSvc *user.Service
}

func registerUploadAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *upload.Service, usrSvc *user.Service) {
	api := uploadApi{svc: svc, usrSvc: usrSvc}

	ug := g.Group("/uploads", jwt)
	ug.POST("", api.create)
	ug.GET("", api.query)
	ug.GET("/files/:id", api.downloadFile)
	ug.DELETE("/:id", api.destroy)
}

// Handlers

// create accepts a multipart form: "files" parts plus "name", "class",
// "subject" and "upload_type" fields.
func (api *uploadApi) create(ctx echo.Context) error {
	data := upload.NewUpload{
		StudentInfo: upload.StudentInfo{
			Name:    ctx.FormValue("name"),
			Class:   ctx.FormValue("class"),
			Subject: ctx.FormValue("subject"),
		},
		UploadType: ctx.FormValue("upload_type"),
	}
	if err := data.Validate(); err != nil {
		return err
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return errors.Wrap(err, "reading multipart form")
	}
	for _, fh := range form.File["files"] {
		src, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		content, err := ioutil.ReadAll(src)
		_ = src.Close()
		if err != nil {
			return errors.Wrap(err, "reading uploaded file")
		}
		data.Files = append(data.Files, upload.NewFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Data:        content,
		})
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	up, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newSuccessResponse(up))
}

// query lists uploads most recent first. Students see their own uploads;
// teachers and admins may list any kind (default: student uploads).
func (api *uploadApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	kind := ctx.QueryParam("kind")
	uploadedBy := ""
	if ctxUsr.IsStudent() {
		kind = upload.KindStudent
		uploadedBy = ctxUsr.Email
	} else if kind == "" {
		kind = upload.KindStudent
	}

	uploads, err := api.svc.Query(ctx.Request().Context(), kind, uploadedBy)
	if err != nil {
		return errors.Wrap(err, "querying uploads")
	}
	if uploads == nil {
		uploads = []upload.Upload{}
	}
	return ctx.JSON(http.StatusOK, newSuccessResponse(uploads))
}

func (api *uploadApi) downloadFile(ctx echo.Context) error {
	blob, err := api.svc.GetFile(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == upload.ErrFileNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding file")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+blob.Name+`"`)
	contentType := blob.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return ctx.Blob(http.StatusOK, contentType, blob.Data)
}

func (api *uploadApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	up, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == upload.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding upload")
	}
	if ctxUsr.IsStudent() && up.UploadedBy != ctxUsr.Email {
		return errHttpForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), up.ID); err != nil {
		return errors.Wrap(err, "deleting upload")
	}
	return ctx.NoContent(http.StatusNoContent)
}
