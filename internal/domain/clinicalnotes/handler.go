package clinicalnotes

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/encoding/charmap"

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
	read := g.Group("/notes", auth.RequirePermission(auth.ReadPrescriptions))
	read.GET("/:admission", h.List)
	read.GET("/:admission/summary/:kind", h.Summary)

	write := g.Group("/notes", auth.RequirePermission(auth.WritePrescriptions))
	write.POST("/:admission/summary/refresh", h.Refresh)

	ingest := g.Group("/ingest", auth.RequirePermission(auth.Ingest))
	ingest.POST("/notes", h.Ingest)
}

func admissionParam(c echo.Context) (int64, error) {
	n, err := strconv.ParseInt(c.Param("admission"), 10, 64)
	if err != nil || n <= 0 {
		return 0, api.InvalidParams("invalid admission number")
	}
	return n, nil
}

func (h *Handler) List(c echo.Context) error {
	admission, err := admissionParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	notes, total, err := h.svc.List(c.Request().Context(), admission, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if notes == nil {
		notes = []*Note{}
	}
	return api.OK(c, pagination.NewResponse(notes, total, pg.Limit, pg.Offset))
}

func (h *Handler) Summary(c echo.Context) error {
	admission, err := admissionParam(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(c.Request().Context(), admission, c.Param("kind"))
	if err != nil {
		return err
	}
	return api.OK(c, sum)
}

type refreshRequest struct {
	Kinds []string `json:"kinds"`
}

func (h *Handler) Refresh(c echo.Context) error {
	admission, err := admissionParam(c)
	if err != nil {
		return err
	}
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return api.InvalidParams("invalid body")
	}
	out, err := h.svc.Refresh(c.Request().Context(), admission, req.Kinds...)
	if err != nil {
		return err
	}
	return api.OK(c, out)
}

// Ingest accepts a JSON array of notes. Hospital exports that are not valid
// UTF-8 are decoded as ISO-8859-1.
func (h *Handler) Ingest(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	var reader io.Reader = bytes.NewReader(body)
	if !utf8.Valid(body) {
		reader = charmap.ISO8859_1.NewDecoder().Reader(reader)
	}
	var notes []*Note
	if err := json.NewDecoder(reader).Decode(&notes); err != nil {
		return api.InvalidParams("invalid body")
	}
	n, err := h.svc.Ingest(c.Request().Context(), notes)
	if err != nil {
		return err
	}
	return api.Created(c, map[string]int{"count": n})
}
