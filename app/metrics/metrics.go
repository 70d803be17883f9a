package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegistrationsTotal         metric.Int64Counter
	LoginAttemptsTotal         metric.Int64Counter // attributed by outcome: success|invalid_credentials|locked
	AccountLockoutsTotal       metric.Int64Counter
	LoginDurationSeconds       metric.Float64Histogram
	PasswordResetRequestsTotal metric.Int64Counter
	PasswordResetsTotal        metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// Get returns the global instruments, creating them on first use from the
// globally configured MeterProvider. Before tracer.Init runs this is the
// otel no-op provider, so tests can record freely.
func Get() *AppMetrics {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("stashly-api")
		var err error
		m := &AppMetrics{}

		m.RegistrationsTotal, err = meter.Int64Counter(
			"registrations_total",
			metric.WithDescription("Total number of completed user registrations"),
			metric.WithUnit("{registration}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create registrations_total: %v", err)
		}

		m.LoginAttemptsTotal, err = meter.Int64Counter(
			"login_attempts_total",
			metric.WithDescription("Total number of login attempts by outcome"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_attempts_total: %v", err)
		}

		m.AccountLockoutsTotal, err = meter.Int64Counter(
			"account_lockouts_total",
			metric.WithDescription("Total number of login attempts refused by the lockout policy"),
			metric.WithUnit("{refusal}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create account_lockouts_total: %v", err)
		}

		m.LoginDurationSeconds, err = meter.Float64Histogram(
			"login_duration_seconds",
			metric.WithDescription("Duration of login requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_duration_seconds: %v", err)
		}

		m.PasswordResetRequestsTotal, err = meter.Int64Counter(
			"password_reset_requests_total",
			metric.WithDescription("Total number of password reset challenges issued"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create password_reset_requests_total: %v", err)
		}

		m.PasswordResetsTotal, err = meter.Int64Counter(
			"password_resets_total",
			metric.WithDescription("Total number of completed password resets"),
			metric.WithUnit("{reset}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create password_resets_total: %v", err)
		}

		appMetrics = m
	})
	return appMetrics
}
