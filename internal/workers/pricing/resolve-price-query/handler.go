package resolvepricequery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"mandi-prices/internal/common/errors"
	"mandi-prices/internal/common/metrics"
	"mandi-prices/internal/models"
	"mandi-prices/internal/pricing/engine"
	"mandi-prices/internal/pricing/intent"
)

const (
	TaskType = "resolve-price-query"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Resolver is the part of the engine the worker needs.
type Resolver interface {
	Resolve(ctx context.Context, in models.Intent) (models.ResolutionResult, error)
}

// Recorder receives otel measurements. A nil Recorder is allowed.
type Recorder interface {
	RecordJobProcessed(ctx context.Context, status string)
	RecordJobDuration(ctx context.Context, duration time.Duration, status string)
	RecordResolution(ctx context.Context, kind, tier string)
}

type Handler struct {
	config       *Config
	resolver     Resolver
	extractor    intent.Extractor
	recorder     Recorder
	errorHandler *errors.ErrorHandler
	logger       Logger
	now          func() time.Time
}

// NewHandler wires the worker. extractor may be nil, in which case jobs
// must carry a structured intent.
func NewHandler(config *Config, resolver Resolver, extractor intent.Extractor, recorder Recorder, log Logger) *Handler {
	if config.Location == nil {
		config.Location = time.UTC
	}
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		resolver:     resolver,
		extractor:    extractor,
		recorder:     recorder,
		errorHandler: errors.NewErrorHandler(l),
		logger:       l,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewInvalidIntentError(fmt.Sprintf("parse input: %v", err)), start)
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	if h.recorder != nil {
		h.recorder.RecordJobProcessed(ctx, "completed")
		h.recorder.RecordJobDuration(ctx, time.Since(start), "completed")
		h.recorder.RecordResolution(ctx, string(output.Kind), string(output.UsedFallbackTier))
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidIntentError("input cannot be nil")
	}

	id := input.ResolutionID
	if id == "" {
		id = uuid.New().String()
	}
	ctx = engine.WithResolutionID(ctx, id)

	in, err := h.intentFor(ctx, input)
	if err != nil {
		return nil, err
	}

	res, err := h.resolver.Resolve(ctx, in)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewStoreUnavailableError("resolve", ctx.Err())
		}
		return nil, err
	}

	out := newOutput(id, in, res)
	h.logger.Info("price query resolved", map[string]interface{}{
		"resolutionId": id,
		"kind":         out.Kind,
		"tier":         out.UsedFallbackTier,
		"records":      len(out.Records),
		"candidates":   len(out.Candidates),
	})
	return out, nil
}

func (h *Handler) intentFor(ctx context.Context, input *Input) (models.Intent, error) {
	if len(input.Intent) > 0 {
		return intent.Decode(input.Intent, models.Day(h.now().In(h.config.Location)))
	}
	if strings.TrimSpace(input.Question) == "" {
		return models.Intent{}, errors.NewInvalidIntentError("job carries neither intent nor question")
	}
	if h.extractor == nil {
		return models.Intent{}, errors.NewInvalidIntentError("free-text questions need an intent extractor")
	}
	return h.extractor.ExtractIntent(ctx, input.Question)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	code := errors.NormalizeError(err).Code
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	if h.recorder != nil {
		h.recorder.RecordJobProcessed(ctx, "failed")
		h.recorder.RecordJobDuration(ctx, time.Since(start), "failed")
	}
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
