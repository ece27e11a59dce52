package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"golang.org/x/time/rate"

	"farewatch/internal/config"
	"farewatch/internal/constants"
	"farewatch/internal/logger"
	"farewatch/pkg/metrics"
	"farewatch/pkg/models"
)

// Dispatcher renders the alert text for a match and hands it to the notifier.
// There is no retry and no delivery confirmation.
type Dispatcher struct {
	tmpl     *template.Template
	notifier Notifier
	limiter  *rate.Limiter
	logger   logger.Logger
}

type templateData struct {
	User  models.User
	Event models.PriceEvent
}

func NewDispatcher(cfg config.NotifierConfig, notifier Notifier, log logger.Logger) (*Dispatcher, error) {
	text := cfg.Template
	if text == "" {
		text = constants.DefaultAlertTemplate
	}

	tmpl, err := template.New("alert").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid notifier.template: %w", err)
	}

	d := &Dispatcher{
		tmpl:     tmpl,
		notifier: notifier,
		logger:   log,
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return d, nil
}

func (d *Dispatcher) Render(user models.User, event models.PriceEvent) (string, error) {
	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, templateData{User: user, Event: event}); err != nil {
		return "", fmt.Errorf("failed to render alert: %w", err)
	}
	return buf.String(), nil
}

// Dispatch blocks while the rate limit is exhausted and returns ctx's error if
// it is cancelled while waiting.
func (d *Dispatcher) Dispatch(ctx context.Context, user models.User, event models.PriceEvent) error {
	text, err := d.Render(user, event)
	if err != nil {
		metrics.IncNotifications(d.notifier.Name(), "render_error")
		return err
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			metrics.IncNotifications(d.notifier.Name(), "throttled")
			return fmt.Errorf("alert for user %s not sent: %w", user.ID, err)
		}
	}

	msg := models.DispatchMessage{User: user, Event: event, Text: text}
	if err := d.notifier.Send(ctx, msg); err != nil {
		metrics.IncNotifications(d.notifier.Name(), "error")
		return fmt.Errorf("notifier %s: %w", d.notifier.Name(), err)
	}

	metrics.IncNotifications(d.notifier.Name(), "sent")
	d.logger.DebugwCtx(ctx, "Alert dispatched", "user_id", user.ID, "notifier", d.notifier.Name())
	return nil
}
