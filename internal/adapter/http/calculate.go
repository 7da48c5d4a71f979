package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/feels-like-service/internal/domain"
	"github.com/couchcryptid/feels-like-service/internal/observability"
)

const maxBodyBytes = 1 << 20

// calculateRequest mirrors domain.Reading with pointer fields so a missing
// field is rejected instead of silently read as zero.
type calculateRequest struct {
	DryBulbTemperature *float64 `json:"dry_bulb_temperature"`
	RelativeHumidity   *float64 `json:"relative_humidity"`
	WindSpeed          *float64 `json:"wind_speed"`
}

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

type calculateHandler struct {
	limiter *rate.Limiter
	metrics *observability.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

func newCalculateHandler(limiter *rate.Limiter, metrics *observability.Metrics, logger *slog.Logger) *calculateHandler {
	return &calculateHandler{
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer("feels-like-service/http"),
	}
}

// ServeHTTP answers a successful calculation with the bare apparent
// temperature as a JSON number.
func (h *calculateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	_, span := h.tracer.Start(ctx, "calculate-feels-like-temperature")
	defer span.End()

	if h.limiter != nil && !h.limiter.Allow() {
		h.metrics.RateLimited.Inc()
		span.SetStatus(codes.Error, "rate limited")
		h.respond(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return
	}

	reading, err := decodeReading(w, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad request")
		h.logger.Debug("calculation request rejected", "error", err)
		h.respond(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Float64("reading.dry_bulb_temperature", reading.DryBulbTemperature),
		attribute.Float64("reading.relative_humidity", reading.RelativeHumidity),
		attribute.Float64("reading.wind_speed", reading.WindSpeed),
	)

	at, err := reading.ApparentTemperature()
	h.metrics.ObserveComputation("http", at, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid input")

		var invalid *domain.InvalidInputError
		if errors.As(err, &invalid) {
			h.respond(w, http.StatusUnprocessableEntity, errorResponse{Error: domain.ErrInvalidInput.Error(), Fields: invalid.Fields})
			return
		}
		h.logger.Error("calculation failed", "error", err)
		h.respond(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	span.SetAttributes(attribute.Float64("apparent_temperature", at))
	h.respond(w, http.StatusOK, at)
}

func (h *calculateHandler) respond(w http.ResponseWriter, status int, v any) {
	h.metrics.HTTPRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	writeJSON(w, status, v)
}

// decodeReading parses the request body. Unknown fields, trailing data, and
// missing fields are errors; range checks are left to the domain.
func decodeReading(w http.ResponseWriter, r *http.Request) (domain.Reading, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var req calculateRequest
	if err := dec.Decode(&req); err != nil {
		return domain.Reading{}, fmt.Errorf("decode request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.Reading{}, errors.New("decode request body: unexpected data after JSON object")
	}

	var missing []string
	if req.DryBulbTemperature == nil {
		missing = append(missing, domain.FieldDryBulbTemperature)
	}
	if req.RelativeHumidity == nil {
		missing = append(missing, domain.FieldRelativeHumidity)
	}
	if req.WindSpeed == nil {
		missing = append(missing, domain.FieldWindSpeed)
	}
	if len(missing) > 0 {
		return domain.Reading{}, fmt.Errorf("missing required fields: %v", missing)
	}

	return domain.Reading{
		DryBulbTemperature: *req.DryBulbTemperature,
		RelativeHumidity:   *req.RelativeHumidity,
		WindSpeed:          *req.WindSpeed,
	}, nil
}
