package segment

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
	read.GET("/segments", h.List)
	read.GET("/segments/:id", h.Get)

	admin := g.Group("", auth.RequirePermission(auth.AdminSegments))
	admin.PUT("/segments/:id/exams/:type", h.UpsertExam)
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return api.OK(c, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return api.InvalidParams("invalid segment id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return api.OK(c, d)
}

func (h *Handler) UpsertExam(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return api.InvalidParams("invalid segment id")
	}
	var e Exam
	if err := c.Bind(&e); err != nil {
		return api.InvalidParams("invalid body")
	}
	e.IDSegment = id
	e.TypeExam = c.Param("type")
	uid := auth.UserIDFromContext(c.Request().Context())
	e.UpdatedBy = &uid
	if err := h.svc.UpsertExam(c.Request().Context(), &e); err != nil {
		return err
	}
	return api.OK(c, e)
}
