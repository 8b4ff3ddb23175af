package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/crm"
	"github.com/maraakiz/portal/core/planning"
)

type crmApi struct {
	svc      *crm.Service
	validate *validator.Validate
	conf     *core.Config
	now      func() time.Time
}

func registerCRMAPI(g *echo.Group, svc *crm.Service, validate *validator.Validate, conf *core.Config, now func() time.Time) {
	api := crmApi{svc: svc, validate: validate, conf: conf, now: now}

	cg := g.Group("/crm", requireSession)
	cg.GET("/dashboard", api.dashboard)
	cg.GET("/calendar", api.calendar)
	cg.GET("/planning/next", api.nextSession)
	cg.GET("/planning.ics", api.exportICS)
	cg.POST("/planning/preview", api.previewRecurrence)
}

type (
	NextSessionResponse struct {
		Found bool            `json:"found"`
		Next  *planning.Event `json:"prochain_cours"`
	}

	RecurrencePreviewRequest struct {
		planning.RecurrenceRequest
	}

	RecurrencePreviewResponse struct {
		Count       int                   `json:"count"`
		Occurrences []planning.Occurrence `json:"occurrences"`
	}
)

// Validate checks the request and plans it in `loc`.
func (req *RecurrencePreviewRequest) Validate(validate *validator.Validate, loc *time.Location) (planning.RecurrencePlan, error) {
	req.Title = core.CleanString(req.Title)
	if err := validate.Struct(req); err != nil {
		return planning.RecurrencePlan{}, err
	}
	return req.Plan(loc)
}

// Handlers

// dashboard answers `?merkez=<id>`.
func (api *crmApi) dashboard(ctx echo.Context) error {
	merkezID, err := strconv.Atoi(ctx.QueryParam("merkez"))
	if err != nil || merkezID <= 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "merkez", Error: "must be a merkez id"})
	}

	dash, err := api.svc.Dashboard(ctx.Request().Context(), getContextSession(ctx), merkezID, api.now())
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

// calendar answers `?view=day|week|month|year&date=YYYY-MM-DD`; both default to this week.
func (api *crmApi) calendar(ctx echo.Context) error {
	view, err := planning.ParseView(ctx.QueryParam("view"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "view", Error: err.Error()})
	}
	ref := api.now().In(api.svc.Location())
	if date := ctx.QueryParam("date"); date != "" {
		if ref, err = planning.ParseDate(date, api.svc.Location()); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date must be formatted YYYY-MM-DD"})
		}
	}

	page, err := api.svc.Calendar(ctx.Request().Context(), getContextSession(ctx), view, ref)
	if err != nil {
		return errors.Wrap(err, "reading calendar")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *crmApi) nextSession(ctx echo.Context) error {
	next, ok, err := api.svc.NextSession(ctx.Request().Context(), getContextSession(ctx), api.now())
	if err != nil {
		return errors.Wrap(err, "finding next session")
	}
	resp := NextSessionResponse{Found: ok}
	if ok {
		resp.Next = &next
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *crmApi) exportICS(ctx echo.Context) error {
	events, err := api.svc.Planning(ctx.Request().Context(), getContextSession(ctx))
	if err != nil {
		return errors.Wrap(err, "reading planning")
	}

	doc := planning.ExportICS(events, planning.ICSOptions{
		ProductID: api.conf.Planning.ICSProductID,
		Name:      api.conf.AppName + " - planning",
		Location:  api.svc.Location(),
		Now:       api.now(),
	})
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="planning.ics"`)
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(doc))
}

// previewRecurrence lists the sessions a recurring course would create, without creating them.
func (api *crmApi) previewRecurrence(ctx echo.Context) error {
	var data RecurrencePreviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecurrencePreviewRequest")
	}
	plan, err := data.Validate(api.validate, api.svc.Location())
	if err != nil {
		return err
	}

	occurrences, err := plan.Expand()
	if err != nil {
		return errors.Wrap(err, "expanding recurrence")
	}
	return ctx.JSON(http.StatusOK, RecurrencePreviewResponse{Count: len(occurrences), Occurrences: occurrences})
}
