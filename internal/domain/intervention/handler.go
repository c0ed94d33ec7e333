package intervention

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/auth"
	"github.com/clinrx/clinrx/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("/intervention", auth.RequirePermission(auth.ReadPrescriptions))
	read.GET("", h.List)
	read.GET("/reasons", h.Reasons)
	read.GET("/outcome-data/:id", h.OutcomeData)

	write := g.Group("/intervention", auth.RequirePermission(auth.WriteInterventions))
	write.POST("", h.Save)
	write.POST("/outcome/:id", h.SetOutcome)
	write.DELETE("/:id", h.Delete)
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, api.InvalidParams("invalid id")
	}
	return id, nil
}

func dateParam(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, api.InvalidParams("invalid " + name + ", expected YYYY-MM-DD")
	}
	return &d, nil
}

func parseFilter(c echo.Context) (ListFilter, error) {
	var f ListFilter
	if v := c.QueryParam("admissionNumber"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, api.InvalidParams("invalid admissionNumber")
		}
		f.AdmissionNumber = &n
	}
	from, err := dateParam(c, "startDate")
	if err != nil {
		return f, err
	}
	f.From = from
	to, err := dateParam(c, "endDate")
	if err != nil {
		return f, err
	}
	if to != nil {
		// endDate is inclusive
		next := to.AddDate(0, 0, 1)
		f.To = &next
	}
	for _, raw := range c.QueryParams()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.Statuses = append(f.Statuses, part)
			}
		}
	}
	return f, nil
}

func (h *Handler) List(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Intervention{}
	}
	return api.OK(c, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Reasons(c echo.Context) error {
	reasons, err := h.svc.Reasons(c.Request().Context())
	if err != nil {
		return err
	}
	if reasons == nil {
		reasons = []*Reason{}
	}
	return api.OK(c, reasons)
}

func (h *Handler) Save(c echo.Context) error {
	var req SaveRequest
	if err := c.Bind(&req); err != nil {
		return api.InvalidParams("invalid body")
	}
	ctx := c.Request().Context()
	saved, err := h.svc.Save(ctx, &req, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return api.OK(c, saved)
}

func (h *Handler) OutcomeData(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	data, err := h.svc.OutcomeData(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return api.OK(c, data)
}

type outcomeBody struct {
	Outcome                   string   `json:"outcome"`
	IDPrescriptionDrugDestiny *int64   `json:"idPrescriptionDrugDestiny"`
	EconomyDayValue           *float64 `json:"economyDayValue"`
	DateEndEconomy            string   `json:"dateEndEconomy"`
}

func (h *Handler) SetOutcome(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var body outcomeBody
	if err := c.Bind(&body); err != nil {
		return api.InvalidParams("invalid body")
	}
	req := &OutcomeRequest{
		Outcome:                   body.Outcome,
		IDPrescriptionDrugDestiny: body.IDPrescriptionDrugDestiny,
		EconomyDayValue:           body.EconomyDayValue,
	}
	if body.DateEndEconomy != "" {
		d, err := time.Parse(dateLayout, body.DateEndEconomy)
		if err != nil {
			return api.InvalidParams("invalid dateEndEconomy, expected YYYY-MM-DD")
		}
		req.DateEndEconomy = &d
	}
	ctx := c.Request().Context()
	i, err := h.svc.SetOutcome(ctx, id, req, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return api.OK(c, i)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return api.OK(c, map[string]int64{"id": id})
}
