package patient

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequirePermission(auth.ReadPrescriptions))
	read.GET("/patient/:admission", h.Get)
	read.GET("/patient/:admission/allergies", h.Allergies)

	write := g.Group("", auth.RequirePermission(auth.WritePatient))
	write.POST("/patient/:admission", h.UpdateClinical)

	ingest := g.Group("/ingest", auth.RequirePermission(auth.Ingest))
	ingest.POST("/patients", h.Ingest)
}

func admissionParam(c echo.Context) (int64, error) {
	n, err := strconv.ParseInt(c.Param("admission"), 10, 64)
	if err != nil || n <= 0 {
		return 0, api.InvalidParams("invalid admission number")
	}
	return n, nil
}

type patientView struct {
	*Patient
	Age           *int             `json:"age"`
	WeightHistory []*WeightHistory `json:"weightHistory"`
}

func (h *Handler) Get(c echo.Context) error {
	admission, err := admissionParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, admission)
	if err != nil {
		return err
	}
	history, err := h.svc.WeightHistory(ctx, admission)
	if err != nil {
		return err
	}
	view := patientView{Patient: p, WeightHistory: history}
	if age, ok := p.Age(h.svc.now()); ok {
		view.Age = &age
	}
	return api.OK(c, view)
}

func (h *Handler) Allergies(c echo.Context) error {
	admission, err := admissionParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Allergies(c.Request().Context(), admission)
	if err != nil {
		return err
	}
	return api.OK(c, items)
}

func (h *Handler) UpdateClinical(c echo.Context) error {
	admission, err := admissionParam(c)
	if err != nil {
		return err
	}
	var in ClinicalUpdate
	if err := c.Bind(&in); err != nil {
		return api.InvalidParams("invalid body")
	}
	ctx := c.Request().Context()
	p, err := h.svc.UpdateClinical(ctx, admission, in, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return api.OK(c, p)
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
