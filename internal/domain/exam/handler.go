package exam

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
	read.GET("/exams/:admission", h.View)

	ingest := g.Group("/ingest", auth.RequirePermission(auth.Ingest))
	ingest.POST("/exams", h.Ingest)
}

// View accepts an optional idSegment query parameter for reference ranges.
func (h *Handler) View(c echo.Context) error {
	admission, err := strconv.ParseInt(c.Param("admission"), 10, 64)
	if err != nil || admission <= 0 {
		return api.InvalidParams("invalid admission number")
	}
	var idSegment int
	if v := c.QueryParam("idSegment"); v != "" {
		if idSegment, err = strconv.Atoi(v); err != nil {
			return api.InvalidParams("invalid idSegment")
		}
	}
	view, err := h.svc.View(c.Request().Context(), admission, idSegment)
	if err != nil {
		return err
	}
	return api.OK(c, view)
}

func (h *Handler) Ingest(c echo.Context) error {
	var exams []*Exam
	if err := c.Bind(&exams); err != nil {
		return api.InvalidParams("invalid body")
	}
	n, err := h.svc.Ingest(c.Request().Context(), exams)
	if err != nil {
		return err
	}
	return api.Created(c, map[string]int{"count": n})
}
