package services

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/benmeehan/solar-station/internal/constants"
	"github.com/benmeehan/solar-station/internal/models"
	"github.com/benmeehan/solar-station/pkg/network"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httpUtils "github.com/benmeehan/solar-station/pkg/httpUtils"
)

// HTTPFallbackService posts each sample to an HTTP backend. Failures are logged
// and dropped; nothing is queued or retried.
type HTTPFallbackService struct {
	url     string
	client  *http.Client
	monitor network.Monitor
	logger  zerolog.Logger

	posted atomic.Uint64
}

// NewHTTPFallbackService creates an emitter for url. A zero timeout selects the default.
func NewHTTPFallbackService(url string, timeout time.Duration, monitor network.Monitor, logger zerolog.Logger) *HTTPFallbackService {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &HTTPFallbackService{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		monitor: monitor,
		logger:  logger,
	}
}

// Post sends reading without relay fields. It is a silent no-op while the network is down.
func (h *HTTPFallbackService) Post(ctx context.Context, reading models.SensorReading) bool {
	if !h.monitor.IsUp() {
		return false
	}

	requestID := uuid.NewString()
	status, err := httpUtils.PostJSON(ctx, h.client, h.url, models.NewAPIPayload(reading, reading.UptimeMs), map[string]string{
		"User-Agent":   constants.HTTPUserAgent,
		"X-Request-ID": requestID,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("request_id", requestID).Msg("HTTP fallback post failed")
		return false
	}
	if !httpUtils.IsSuccess(status) {
		h.logger.Warn().Int("status", status).Str("request_id", requestID).Msg("HTTP fallback rejected reading")
		return false
	}

	h.posted.Add(1)
	h.logger.Debug().Int("status", status).Str("request_id", requestID).Msg("HTTP fallback accepted reading")
	return true
}

// Posted returns the number of accepted posts.
func (h *HTTPFallbackService) Posted() uint64 {
	return h.posted.Load()
}
