package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once      sync.Once
	singleton *Service
)

// Service bundles the client's prometheus instruments. A process-wide
// singleton keeps re-registration panics out of repeated constructions.
type Service struct {
	Requests       *prometheus.CounterVec
	SessionReopens prometheus.Counter
	Notifications  *prometheus.CounterVec
	DoseAttempts   prometheus.Counter
	DoseDuration   prometheus.Histogram
}

// New returns the shared metrics service, registering the instruments on
// the default registry on first use.
func New() *Service {
	once.Do(func() {
		singleton = &Service{
			Requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "balance_requests_total",
				Help: "Service calls issued by the balance client.",
			}, []string{"service", "method", "status"}),
			SessionReopens: promauto.NewCounter(prometheus.CounterOpts{
				Name: "balance_session_reopens_total",
				Help: "Sessions reopened after a session fault.",
			}),
			Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "balance_notifications_total",
				Help: "Asynchronous notifications processed, by kind.",
			}, []string{"kind"}),
			DoseAttempts: promauto.NewCounter(prometheus.CounterOpts{
				Name: "balance_dose_attempts_total",
				Help: "Dosing attempts started.",
			}),
			DoseDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "balance_dose_duration_seconds",
				Help:    "Wall-clock duration of dosing protocol runs.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			}),
		}
	})
	return singleton
}

// ObserveRequest counts one issued call.
func (s *Service) ObserveRequest(service, method string, err error) {
	if s == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.Requests.WithLabelValues(service, method, status).Inc()
}

// ObserveNotification counts one processed notification.
func (s *Service) ObserveNotification(kind string) {
	if s == nil {
		return
	}
	s.Notifications.WithLabelValues(kind).Inc()
}

// ObserveSessionReopen counts one reopen after a session fault.
func (s *Service) ObserveSessionReopen() {
	if s == nil {
		return
	}
	s.SessionReopens.Inc()
}

// ObserveDoseAttempt counts one started dosing attempt.
func (s *Service) ObserveDoseAttempt() {
	if s == nil {
		return
	}
	s.DoseAttempts.Inc()
}

// ObserveDoseDuration records the duration of one protocol run.
func (s *Service) ObserveDoseDuration(seconds float64) {
	if s == nil {
		return
	}
	s.DoseDuration.Observe(seconds)
}
