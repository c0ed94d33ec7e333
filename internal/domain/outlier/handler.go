package outlier

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
	read := g.Group("/outliers", auth.RequirePermission(auth.ReadPrescriptions))
	read.GET("/:segment/:drug", h.List)

	admin := g.Group("/outliers", auth.RequirePermission(auth.AdminDrugs))
	admin.POST("/generate/:segment", h.Generate)

	write := g.Group("/outliers", auth.RequirePermission(auth.WriteDrugAttributes))
	write.PUT("/:id/score", h.SetScore)
}

func (h *Handler) List(c echo.Context) error {
	idSegment, err := strconv.Atoi(c.Param("segment"))
	if err != nil || idSegment <= 0 {
		return api.InvalidParams("invalid segment")
	}
	idDrug, err := strconv.ParseInt(c.Param("drug"), 10, 64)
	if err != nil {
		return api.InvalidParams("invalid drug id")
	}
	list, err := h.svc.List(c.Request().Context(), idSegment, idDrug)
	if err != nil {
		return err
	}
	return api.OK(c, list)
}

func (h *Handler) Generate(c echo.Context) error {
	idSegment, err := strconv.Atoi(c.Param("segment"))
	if err != nil {
		return api.InvalidParams("invalid segment")
	}
	ctx := c.Request().Context()
	n, err := h.svc.Generate(ctx, idSegment, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return api.OK(c, map[string]int{"count": n})
}

type scoreRequest struct {
	ManualScore *int `json:"manualScore"`
}

func (h *Handler) SetScore(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return api.InvalidParams("invalid outlier id")
	}
	var req scoreRequest
	if err := c.Bind(&req); err != nil {
		return api.InvalidParams("invalid body")
	}
	ctx := c.Request().Context()
	o, err := h.svc.SetManualScore(ctx, id, req.ManualScore, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return api.OK(c, o)
}
