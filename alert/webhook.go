package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/warden/httpclient"
	"github.com/kbukum/warden/resilience"
	"github.com/kbukum/warden/validation"
)

// WebhookConfig configures delivery of reports to an HTTP endpoint.
type WebhookConfig struct {
	// URL receives a JSON POST per report.
	URL string `yaml:"url" mapstructure:"url" validate:"required,url"`
	// Source tags every payload, usually the host service name.
	Source string `yaml:"source" mapstructure:"source"`
	// Rate and Burst bound deliveries per second. Defaults are 0.5/s and 3.
	Rate  float64 `yaml:"rate" mapstructure:"rate" validate:"gte=0"`
	Burst int     `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
	// HTTP configures the retry client used for delivery.
	HTTP httpclient.Config `yaml:"http" mapstructure:"http"`
}

// ApplyDefaults fills unset fields.
func (c *WebhookConfig) ApplyDefaults() {
	if c.Rate <= 0 {
		c.Rate = 0.5
	}
	if c.Burst <= 0 {
		c.Burst = 3
	}
	c.HTTP.ApplyDefaults()
}

// Validate checks the configuration.
func (c *WebhookConfig) Validate() error {
	return validation.Validate(c)
}

// WebhookPayload is the JSON body sent for each report.
type WebhookPayload struct {
	ID        string `json:"id"`
	Source    string `json:"source,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// WebhookNotifier posts reports as JSON through the retry client.
type WebhookNotifier struct {
	cfg    WebhookConfig
	client *httpclient.Client
}

// NewWebhookNotifier builds the notifier and its rate-limited retry client.
func NewWebhookNotifier(cfg WebhookConfig, opts ...httpclient.Option) (*WebhookNotifier, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpCfg := cfg.HTTP
	httpCfg.RateLimiter = &resilience.RateLimiterConfig{
		Name:  "alert-webhook",
		Rate:  cfg.Rate,
		Burst: cfg.Burst,
	}
	client, err := httpclient.New(httpCfg, opts...)
	if err != nil {
		return nil, err
	}
	return &WebhookNotifier{cfg: cfg, client: client}, nil
}

// Notify delivers msg. Each call carries a fresh delivery id.
func (n *WebhookNotifier) Notify(ctx context.Context, msg string) error {
	payload := WebhookPayload{
		ID:        uuid.NewString(),
		Source:    n.cfg.Source,
		Text:      msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	resp, err := n.client.PostJSON(ctx, n.cfg.URL, payload)
	if err != nil {
		return fmt.Errorf("deliver report %s: %w", payload.ID, err)
	}
	_ = resp.Body.Close()
	return nil
}
