package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mono-ai/aiproxy/internal/balance"
	"github.com/mono-ai/aiproxy/internal/logging"
	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/mono-ai/aiproxy/internal/relay"
	"github.com/mono-ai/aiproxy/internal/settings"
	"github.com/mono-ai/aiproxy/internal/store"
	"github.com/mono-ai/aiproxy/internal/usage"
	log "github.com/sirupsen/logrus"
)

const maxRequestBodyBytes = 64 << 20

// ModelDirectory resolves model configs and their price sheets.
type ModelDirectory interface {
	GetModelConfig(ctx context.Context, model string) (*models.ModelConfig, error)
	ListModelConfigs(ctx context.Context) ([]models.ModelConfig, error)
}

// CandidateSource returns the ordered channels eligible for a model and group.
type CandidateSource interface {
	Candidates(model string, group *models.Group) []*models.Channel
	VisibleModels(group *models.Group) []string
}

// RelayHandler forwards model requests upstream and schedules their consumption.
type RelayHandler struct {
	models   ModelDirectory
	channels CandidateSource
	failover *relay.Failover
	balance  balance.Provider
	recorder *usage.Recorder
	settings *settings.Holder
}

// NewRelayHandler wires the relay path.
func NewRelayHandler(directory ModelDirectory, channels CandidateSource, failover *relay.Failover, provider balance.Provider, recorder *usage.Recorder, holder *settings.Holder) *RelayHandler {
	return &RelayHandler{
		models:   directory,
		channels: channels,
		failover: failover,
		balance:  provider,
		recorder: recorder,
		settings: holder,
	}
}

// Handle returns the gin handler for endpoints of mode.
func (h *RelayHandler) Handle(mode models.Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.serve(c, mode)
	}
}

func (h *RelayHandler) serve(c *gin.Context, mode models.Mode) {
	requestAt := time.Now().UTC()
	ctx := c.Request.Context()
	token := tokenFromContext(c)
	group := groupFromContext(c)
	if token == nil || group == nil {
		abortWithError(c, http.StatusUnauthorized, errTypeAuthentication, "Missing API key")
		return
	}

	body, errRead := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes))
	if errRead != nil {
		abortWithError(c, http.StatusBadRequest, errTypeInvalidRequest, "Failed to read request body")
		return
	}
	model := relay.RequestModel(body)
	if model == "" {
		abortWithError(c, http.StatusBadRequest, errTypeInvalidRequest, "Request body must be JSON with a model field")
		return
	}

	modelConfig, errModel := h.models.GetModelConfig(ctx, model)
	switch {
	case errModel == nil:
	case errors.Is(errModel, store.ErrNotFound):
		abortWithError(c, http.StatusNotFound, errTypeNotFound, fmt.Sprintf("Model %s not found", model))
		return
	default:
		log.WithError(errModel).WithField("model", model).Error("relay handler: load model config failed")
		abortWithError(c, http.StatusInternalServerError, errTypeInternal, "Failed to load model config")
		return
	}

	candidates := h.channels.Candidates(model, group)
	if len(candidates) == 0 {
		abortWithError(c, http.StatusServiceUnavailable, errTypeUnavailable, fmt.Sprintf("No available channel for model %s", model))
		return
	}

	opts := h.settings.Load()
	var consumer balance.Consumer
	if opts.BillingEnabled {
		remaining, groupConsumer, errBalance := h.balance.GetRemainingBalance(ctx, group)
		if errBalance != nil {
			h.abortOnBalanceError(c, group, errBalance)
			return
		}
		if remaining <= 0 {
			abortWithError(c, http.StatusPaymentRequired, errTypeInsufficient, "Group balance is insufficient")
			return
		}
		consumer = groupConsumer
	}

	meta := &usage.RequestMeta{
		RequestID:   logging.GetGinRequestID(c),
		RequestAt:   requestAt,
		Group:       group,
		Token:       token,
		Model:       model,
		Endpoint:    c.Request.URL.Path,
		Mode:        mode,
		IP:          c.ClientIP(),
		RequestBody: body,
	}
	out := &relay.Outbound{
		Method:   c.Request.Method,
		Path:     c.Request.URL.Path,
		RawQuery: c.Request.URL.RawQuery,
		Header:   c.Request.Header.Clone(),
		Body:     body,
	}
	timeout := relay.TimeoutPolicyFrom(opts).For(timeoutMode(modelConfig, mode))

	result, errRelay := h.failover.Relay(ctx, candidates, model, out, timeout, opts.RetryTimes)
	if errRelay != nil {
		h.handleRelayFailure(c, meta, &modelConfig.Price, consumer, errRelay)
		return
	}

	resp := result.Response
	relay.CopyHeaders(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)
	if _, errWrite := c.Writer.Write(resp.Body); errWrite != nil {
		log.WithError(errWrite).WithField("request_id", meta.RequestID).Warn("relay handler: write response failed")
	}
	c.Writer.Flush()

	meta.ChannelID = result.Channel.ID
	meta.ActualModel = result.ActualModel
	meta.ResponseBody = resp.Body
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	var consumed models.Usage
	if success {
		consumed = relay.ExtractUsage(body, resp)
	}
	h.recorder.ConsumeAsync(usage.ConsumeInput{
		Meta:       meta,
		Usage:      &consumed,
		Price:      &modelConfig.Price,
		Consumer:   consumer,
		StatusCode: resp.StatusCode,
		RetryTimes: result.RetryTimes(),
		Success:    success,
	})
}

// timeoutMode keys the relay deadline on the model's type, falling back to the route's mode.
func timeoutMode(cfg *models.ModelConfig, routeMode models.Mode) models.Mode {
	if cfg != nil && cfg.Type != models.ModeUnknown {
		return cfg.Type
	}
	return routeMode
}

func (h *RelayHandler) abortOnBalanceError(c *gin.Context, group *models.Group, errBalance error) {
	switch {
	case errors.Is(errBalance, balance.ErrRealNameLimitExceeded):
		abortWithError(c, http.StatusForbidden, errTypePermission, "Real-name verification is required to continue")
	default:
		log.WithError(errBalance).WithField("group", group.ID).Error("relay handler: balance check failed")
		abortWithError(c, http.StatusServiceUnavailable, errTypeUnavailable, "Balance service unavailable")
	}
}

// handleRelayFailure answers the client and records the failed relay with zero usage.
func (h *RelayHandler) handleRelayFailure(c *gin.Context, meta *usage.RequestMeta, price *models.Price, consumer balance.Consumer, errRelay error) {
	status := http.StatusBadGateway
	errType := errTypeUpstream
	message := "Upstream request failed"
	retryTimes := 0
	code := status

	var upstreamErr *relay.UpstreamError
	switch {
	case errors.Is(errRelay, relay.ErrNoSuitableChannel):
		abortWithError(c, http.StatusServiceUnavailable, errTypeUnavailable, fmt.Sprintf("No available channel for model %s", meta.Model))
		return
	case errors.As(errRelay, &upstreamErr):
		if errors.Is(errRelay, relay.ErrUpstreamTimeout) {
			status = http.StatusGatewayTimeout
			errType = errTypeTimeout
			message = "Upstream request timed out"
		}
		meta.ChannelID = upstreamErr.ChannelID
		meta.ResponseBody = upstreamErr.Body
		if upstreamErr.Attempts > 1 {
			retryTimes = upstreamErr.Attempts - 1
		}
		code = status
		if upstreamErr.StatusCode != 0 {
			code = upstreamErr.StatusCode
		}
	}

	log.WithError(errRelay).WithFields(log.Fields{
		"request_id": meta.RequestID,
		"group":      meta.GroupID(),
		"model":      meta.Model,
	}).Warn("relay handler: relay failed")
	abortWithError(c, status, errType, message)

	h.recorder.ConsumeAsync(usage.ConsumeInput{
		Meta:       meta,
		Usage:      &models.Usage{},
		Price:      price,
		Consumer:   consumer,
		StatusCode: code,
		RetryTimes: retryTimes,
		Success:    false,
		Content:    errRelay.Error(),
	})
}
