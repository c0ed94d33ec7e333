package prescription

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
	read := g.Group("/prescriptions", auth.RequirePermission(auth.ReadPrescriptions))
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := g.Group("/prescriptions", auth.RequirePermission(auth.WritePrescriptions))
	write.POST("/:id/check", h.Check)
	write.PUT("/drug/:id/notes", h.UpdateNotes)
	write.POST("/aggregate", h.Aggregate)

	ingest := g.Group("/ingest", auth.RequirePermission(auth.Ingest))
	ingest.POST("/prescriptions", h.Ingest)
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, api.InvalidParams("invalid id")
	}
	return id, nil
}

func parseFilter(c echo.Context) (ListFilter, error) {
	f := ListFilter{Order: c.QueryParam("order")}
	if v := c.QueryParam("idSegment"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, api.InvalidParams("invalid idSegment")
		}
		f.IDSegment = &n
	}
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, api.InvalidParams("invalid date, expected YYYY-MM-DD")
		}
		f.Date = d
	}
	for _, raw := range c.QueryParams()["idDept"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return f, api.InvalidParams("invalid idDept")
			}
			f.Departments = append(f.Departments, n)
		}
	}
	if v := c.QueryParam("agg"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, api.InvalidParams("invalid agg")
		}
		f.Agg = &b
	}
	if v := c.QueryParam("status"); v != "" {
		f.Status = &v
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
		items = []*Prescription{}
	}
	return api.OK(c, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	detail, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return api.OK(c, detail)
}

type checkRequest struct {
	Status string `json:"status"`
}

func (h *Handler) Check(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	req := checkRequest{Status: StatusChecked}
	if err := c.Bind(&req); err != nil {
		return api.InvalidParams("invalid body")
	}
	ctx := c.Request().Context()
	p, err := h.svc.Check(ctx, id, req.Status, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return api.OK(c, map[string]interface{}{"id": p.ID, "status": p.Status})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) UpdateNotes(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req notesRequest
	if err := c.Bind(&req); err != nil {
		return api.InvalidParams("invalid body")
	}
	ctx := c.Request().Context()
	if err := h.svc.UpdateNotes(ctx, id, req.Notes, auth.UserIDFromContext(ctx)); err != nil {
		return err
	}
	return api.OK(c, map[string]int64{"id": id})
}

type aggregateRequest struct {
	AdmissionNumber int64  `json:"admissionNumber"`
	Date            string `json:"date"`
	IDSegment       *int   `json:"idSegment"`
}

func (h *Handler) Aggregate(c echo.Context) error {
	var req aggregateRequest
	if err := c.Bind(&req); err != nil {
		return api.InvalidParams("invalid body")
	}
	var day time.Time
	if req.Date != "" {
		d, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			return api.InvalidParams("invalid date, expected YYYY-MM-DD")
		}
		day = d
	}
	ctx := c.Request().Context()
	detail, err := h.svc.Aggregate(ctx, req.AdmissionNumber, day, req.IDSegment, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return api.OK(c, detail)
}

func (h *Handler) Ingest(c echo.Context) error {
	var records []*IngestRecord
	if err := c.Bind(&records); err != nil {
		return api.InvalidParams("invalid body")
	}
	ctx := c.Request().Context()
	n, err := h.svc.Ingest(ctx, records, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return api.Created(c, map[string]int{"count": n})
}
