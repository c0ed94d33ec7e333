package drug

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/auth"
	"github.com/clinrx/clinrx/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequirePermission(auth.ReadPrescriptions))
	read.GET("/drugs", h.List)
	read.GET("/drugs/:id/units", h.Units)

	write := g.Group("", auth.RequirePermission(auth.WriteDrugAttributes))
	write.PUT("/drugs/:id/attributes/:segment", h.UpsertAttributes)

	admin := g.Group("/admin/drug", auth.RequirePermission(auth.AdminDrugs))
	admin.GET("/attributes-list", h.AttributesList)
	admin.PUT("/:id/unit/:unit", h.UpdateUnitFactor)
}

func optionalInt(c echo.Context, name string) (*int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, api.InvalidParams("invalid " + name)
	}
	return &n, nil
}

func optionalBool(c echo.Context, name string) (*bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, api.InvalidParams("invalid " + name)
	}
	return &b, nil
}

func drugID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, api.InvalidParams("invalid drug id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	seg, err := optionalInt(c, "idSegment")
	if err != nil {
		return err
	}
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{IDSegment: seg, Name: c.QueryParam("name")}, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return api.OK(c, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Units(c echo.Context) error {
	id, err := drugID(c)
	if err != nil {
		return err
	}
	units, err := h.svc.Units(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return api.OK(c, units)
}

func (h *Handler) UpsertAttributes(c echo.Context) error {
	id, err := drugID(c)
	if err != nil {
		return err
	}
	seg, err := strconv.Atoi(c.Param("segment"))
	if err != nil {
		return api.InvalidParams("invalid segment id")
	}
	var a Attributes
	if err := c.Bind(&a); err != nil {
		return api.InvalidParams("invalid body")
	}
	a.IDDrug, a.IDSegment = id, seg
	uid := auth.UserIDFromContext(c.Request().Context())
	a.UpdatedBy = &uid
	if err := h.svc.UpsertAttributes(c.Request().Context(), &a); err != nil {
		return err
	}
	return api.OK(c, a)
}

func (h *Handler) AttributesList(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f AttributesFilter
	var err error
	if f.IDSegment, err = optionalInt(c, "idSegment"); err != nil {
		return err
	}
	if f.HasPrice, err = optionalBool(c, "hasPrice"); err != nil {
		return err
	}
	if f.HasMaxDose, err = optionalBool(c, "hasMaxDose"); err != nil {
		return err
	}
	if f.HasSubstance, err = optionalBool(c, "hasSubstance"); err != nil {
		return err
	}
	f.Name = c.QueryParam("name")

	items, total, err := h.svc.AttributesList(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return api.OK(c, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateUnitFactor(c echo.Context) error {
	id, err := drugID(c)
	if err != nil {
		return err
	}
	var body struct {
		Factor float64 `json:"factor"`
	}
	if err := c.Bind(&body); err != nil {
		return api.InvalidParams("invalid body")
	}
	if err := h.svc.UpdateUnitFactor(c.Request().Context(), id, c.Param("unit"), body.Factor); err != nil {
		return err
	}
	return api.OK(c, map[string]interface{}{"idDrug": id, "idUnit": c.Param("unit"), "factor": body.Factor})
}
