package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edlabhq/exameval/core/exam"
	"github.com/edlabhq/exameval/core/user"
)

type examApi struct {
	svc    *exam.Service
	usrSvc *user.Service
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *exam.Service, usrSvc *user.Service) {
	api := examApi{svc: svc, usrSvc: usrSvc}

	tg := g.Group("/tests", jwt)
	tg.POST("", api.create, teacherMiddleware())
	tg.GET("", api.query)
	tg.GET("/history", api.history, studentMiddleware())
	tg.GET("/stats", api.stats, studentMiddleware())
	tg.PUT("/:id/assign", api.assign, teacherMiddleware())
	tg.POST("/:id/submissions", api.submit, studentMiddleware())

	sg := g.Group("/sections", jwt)
	sg.GET("", api.querySections)
	sg.POST("", api.createSection, teacherMiddleware())
}

// Handlers

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	t, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}
	return ctx.JSON(http.StatusCreated, newSuccessResponse(t))
}

// query lists the caller's tests: a teacher sees the tests they created,
// a student the tests visible to them filtered by the "tab" query param.
func (api *examApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if ctxUsr.IsStudent() {
		tests, err := api.svc.QueryForStudent(ctx.Request().Context(), ctxUsr, ctx.QueryParam("tab"))
		if err != nil {
			return errors.Wrap(err, "querying student tests")
		}
		if tests == nil {
			tests = []exam.StudentTest{}
		}
		return ctx.JSON(http.StatusOK, newSuccessResponse(tests))
	}

	tests, err := api.svc.QueryForTeacher(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying teacher tests")
	}
	if tests == nil {
		tests = []exam.Test{}
	}
	return ctx.JSON(http.StatusOK, newSuccessResponse(tests))
}

func (api *examApi) assign(ctx echo.Context) error {
	var data exam.AssignTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	t, err := api.svc.Assign(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == exam.ErrTestNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "assigning test")
	}
	return ctx.JSON(http.StatusOK, newSuccessResponse(t))
}

func (api *examApi) submit(ctx echo.Context) error {
	var data exam.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Submit(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		switch errors.Cause(err) {
		case exam.ErrTestNotFound:
			return errHttpNotFound
		case exam.ErrTestNotVisible:
			return errHttpForbidden
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, newSuccessResponse(res))
}

func (api *examApi) history(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	history, err := api.svc.History(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying test history")
	}
	if history == nil {
		history = []exam.TestResult{}
	}
	return ctx.JSON(http.StatusOK, newSuccessResponse(history))
}

func (api *examApi) stats(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	stats, err := api.svc.StudentStats(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "computing student stats")
	}
	return ctx.JSON(http.StatusOK, newSuccessResponse(stats))
}

func (api *examApi) querySections(ctx echo.Context) error {
	sections, err := api.svc.Sections(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	if sections == nil {
		sections = []exam.Section{}
	}
	return ctx.JSON(http.StatusOK, newSuccessResponse(sections))
}

func (api *examApi) createSection(ctx echo.Context) error {
	var data exam.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	s, err := api.svc.AddSection(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newSuccessResponse(s))
}
