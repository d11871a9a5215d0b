package intent

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mandi-prices/internal/common/errors"
	apphttp "mandi-prices/internal/common/http"
	"mandi-prices/internal/common/logger"
	"mandi-prices/internal/models"
)

// Extractor turns a free-text question into an Intent.
type Extractor interface {
	ExtractIntent(ctx context.Context, text string) (models.Intent, error)
}

// Entity is one slot the GenAI service recognized in the question.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type extractResponse struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities"`
}

type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	// Location decides what "today" means in a question.
	Location *time.Location
}

// HTTPExtractor calls the GenAI parse-intent endpoint.
type HTTPExtractor struct {
	cfg    HTTPConfig
	client *apphttp.Client
	logger logger.Logger
	now    func() time.Time
}

func NewHTTPExtractor(cfg HTTPConfig, log logger.Logger) *HTTPExtractor {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &HTTPExtractor{
		cfg:    cfg,
		client: apphttp.NewClient(cfg.Timeout),
		logger: log.With(map[string]interface{}{
			"component": "intent_extractor",
		}),
		now: time.Now,
	}
}

func (x *HTTPExtractor) ExtractIntent(ctx context.Context, text string) (models.Intent, error) {
	if strings.TrimSpace(text) == "" {
		return models.Intent{}, errors.NewInvalidIntentError("question is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	defer cancel()

	resp, err := x.call(ctx, text)
	if err != nil {
		return models.Intent{}, err
	}

	raw := map[string]interface{}{}
	for _, e := range resp.Entities {
		switch e.Type {
		case "commodity", "market", "district", "state", "date":
			raw[e.Type] = e.Value
		case "date_range":
			raw["date"] = e.Value
			raw["dateIsRange"] = true
		}
	}

	in, err := Decode(raw, models.Day(x.now().In(x.cfg.Location)))
	if err != nil {
		return models.Intent{}, err
	}

	x.logger.Info("Intent extracted", map[string]interface{}{
		"confidence":  resp.Confidence,
		"entityCount": len(resp.Entities),
	})
	return in, nil
}

// call posts the question, retrying transport errors and 5xx responses with
// exponential backoff. 4xx responses are not retried.
func (x *HTTPExtractor) call(ctx context.Context, text string) (*extractResponse, error) {
	body := map[string]interface{}{
		"query":   text,
		"context": map[string]interface{}{"domain": "mandi_prices"},
	}
	headers := map[string]string{}
	if x.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + x.cfg.APIKey
	}
	url := strings.TrimRight(x.cfg.BaseURL, "/") + "/api/ai/parse-intent"

	var lastErr error
	for attempt := 0; attempt <= x.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, errors.NewIntentAPITimeoutError()
			}
		}

		var out extractResponse
		lastErr = x.client.PostJSON(ctx, url, headers, body, &out)
		if lastErr == nil {
			return &out, nil
		}
		if ctx.Err() != nil {
			return nil, errors.NewIntentAPITimeoutError()
		}

		var statusErr *apphttp.StatusError
		if stderrors.As(lastErr, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			break
		}
		x.logger.Warn("Intent API call failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		})
	}
	return nil, errors.NewIntentParsingFailedError(fmt.Errorf("parse-intent: %w", lastErr))
}
