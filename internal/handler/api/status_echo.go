package api

import (
	"errors"
	"net/http"

	models "PriceProbe/internal/domain/models"
	domrepo "PriceProbe/internal/domain/repository"
	xhttp "PriceProbe/pkg/http"
	xlogger "PriceProbe/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Readiness reports the state of the delivery session.
type Readiness interface {
	Sink() string
	Ready() bool
}

// StatusEchoHandler serves health and the latest observation snapshot.
type StatusEchoHandler struct {
	logger *xlogger.Logger
	store  domrepo.SnapshotStore
	ready  Readiness
}

func NewStatusEchoHandler(logger *xlogger.Logger, store domrepo.SnapshotStore, ready Readiness) *StatusEchoHandler {
	return &StatusEchoHandler{logger: logger, store: store, ready: ready}
}

func (h *StatusEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/observations", h.List)
	g.GET("/observations/:symbol", h.Get)
}

// Health always answers 200; readiness is in the body.
func (h *StatusEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Health{Sink: h.ready.Sink(), Ready: h.ready.Ready()})
}

func (h *StatusEchoHandler) List(c echo.Context) error {
	req := &models.ObservationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	all, err := h.store.All(c.Request().Context())
	if err != nil {
		h.logger.Error("snapshot read failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("snapshot unavailable").WithError(err))
	}

	rows := make([]*models.Observation, 0, len(all))
	for _, o := range all {
		if req.Source != "" && string(o.Source) != req.Source {
			continue
		}
		if req.Anomalous != "" && o.IsAnomaly != (req.Anomalous == "true") {
			continue
		}
		if len(rows) == req.Limit {
			break
		}
		rows = append(rows, o)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *StatusEchoHandler) Get(c echo.Context) error {
	req := &models.ObservationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	o, err := h.store.Get(c.Request().Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no observation for %s", req.Symbol).WithParam("symbol", req.Symbol))
		}
		h.logger.Error("snapshot read failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("snapshot unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, o)
}
