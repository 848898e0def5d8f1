package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "teambase",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teambase",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "teambase",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	teamsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "teambase",
			Subsystem: "teams",
			Name:      "total",
			Help:      "Number of teams.",
		},
	)

	membersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "teambase",
			Subsystem: "teams",
			Name:      "members_total",
			Help:      "Number of team memberships across all teams.",
		},
	)

	invitationsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "teambase",
			Subsystem: "invitations",
			Name:      "pending",
			Help:      "Number of unexpired invitations.",
		},
	)

	invitationsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "teambase",
			Subsystem: "invitations",
			Name:      "purged_total",
			Help:      "Total number of expired invitations removed by the cleanup job.",
		},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "teambase",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total number of background job runs.",
		},
		[]string{"job", "success"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "teambase",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of background job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"job"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		teamsTotal,
		membersTotal,
		invitationsPending,
		invitationsPurged,
		jobRuns,
		jobDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// SetTenantGauges refreshes the team population gauges. The metrics job
// calls this on a schedule.
func SetTenantGauges(teams, members, pendingInvitations int) {
	teamsTotal.Set(float64(teams))
	membersTotal.Set(float64(members))
	invitationsPending.Set(float64(pendingInvitations))
}

// RecordInvitationsPurged counts invitations removed by the cleanup job.
func RecordInvitationsPurged(n int) {
	if n > 0 {
		invitationsPurged.Add(float64(n))
	}
}

// RecordJobRun records a background job execution.
func RecordJobRun(job string, duration time.Duration, success bool) {
	if job == "" {
		job = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	result := "false"
	if success {
		result = "true"
	}
	jobRuns.WithLabelValues(job, result).Inc()
	jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses IDs and slugs so the path label stays low
// cardinality.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "teams":
		if len(parts) == 1 {
			return "/teams"
		}
		if len(parts) == 2 {
			return "/teams/:id"
		}
		return "/teams/:id/" + parts[2]
	case "invitations":
		if len(parts) == 1 {
			return "/invitations"
		}
		if len(parts) >= 3 && parts[2] == "accept" {
			return "/invitations/:token/accept"
		}
		return "/invitations/:token"
	case "profiles":
		if len(parts) == 1 {
			return "/profiles"
		}
		return "/profiles/:username"
	default:
		return "/" + parts[0]
	}
}
