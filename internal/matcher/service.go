package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farewatch/internal/broker"
	"farewatch/internal/constants"
	"farewatch/internal/logger"
	apperrors "farewatch/pkg/errors"
	"farewatch/pkg/logging"
	"farewatch/pkg/metrics"
	"farewatch/pkg/models"
)

type UserDirectory interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, user models.User, event models.PriceEvent) error
}

// Service consumes price events one at a time and dispatches an alert for
// every match against the current user set.
type Service struct {
	consumer   broker.Consumer
	directory  UserDirectory
	dispatcher Dispatcher
	opts       Options
	idleDelay  time.Duration
	logger     logger.Logger
}

func NewService(consumer broker.Consumer, directory UserDirectory, dispatcher Dispatcher, opts Options, idleDelay time.Duration, log logger.Logger) *Service {
	if idleDelay <= 0 {
		idleDelay = constants.DefaultIdleDelay
	}
	return &Service{
		consumer:   consumer,
		directory:  directory,
		dispatcher: dispatcher,
		opts:       opts,
		idleDelay:  idleDelay,
		logger:     log,
	}
}

func (s *Service) IdleDelay() time.Duration {
	return s.idleDelay
}

// Run processes events until ctx is cancelled. Errors are logged and the loop
// moves on to the next event.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Infow("Notification matcher started",
		"notify_per", s.opts.NotifyPer,
		"require_same_currency", s.opts.RequireSameCurrency,
	)

	for {
		delay := s.idleDelay

		if err := s.ProcessNext(ctx); err != nil {
			if errors.Is(err, broker.ErrConnection) {
				delay = constants.DegradedRetryDelay
				s.logger.Warnw("Queue unavailable, matcher idle", "error", err, "retry_in", delay)
			} else {
				s.logger.Errorw("Failed to process price event", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			s.logger.Infow("Notification matcher stopped", "reason", ctx.Err())
			return nil
		case <-time.After(delay):
		}
	}
}

// ProcessNext consumes and handles one event. It returns nil when ctx is
// cancelled before an event arrives.
func (s *Service) ProcessNext(ctx context.Context) error {
	event, err := s.consumer.Consume(ctx)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}
	return s.Handle(ctx, *event)
}

// Handle matches one event against all users. A directory failure aborts only
// this event; a failed dispatch is logged and the remaining matches are still
// dispatched.
func (s *Service) Handle(ctx context.Context, event models.PriceEvent) error {
	start := time.Now()
	ctx = logging.WithFlightID(ctx, event.FlightID)

	users, err := s.directory.GetAllUsers(ctx)
	if err != nil {
		metrics.ObserveMatcherEvent("directory_error", time.Since(start))
		return fmt.Errorf("failed to load users for flight %s: %w", event.FlightID, err)
	}

	matches := FindMatches(event, users, s.opts)

	failed := 0
	for _, m := range matches {
		if err := s.dispatch(ctx, m, event); err != nil {
			failed++
			s.logger.ErrorwCtx(logging.WithUserID(ctx, m.User.ID), "Failed to dispatch alert",
				"preference_id", m.Preference.PreferenceID,
				"error", err,
			)
		}
	}

	status := "success"
	if failed > 0 {
		status = "partial"
	}
	metrics.ObserveMatcherEvent(status, time.Since(start))

	s.logger.InfowCtx(ctx, "Price event processed",
		"destination", event.Destination,
		"price", event.Price.String(),
		"currency", event.Currency,
		"users", len(users),
		"matches", len(matches),
		"failed", failed,
	)

	return nil
}

func (s *Service) dispatch(ctx context.Context, m Match, event models.PriceEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	return s.dispatcher.Dispatch(ctx, m.User, event)
}
