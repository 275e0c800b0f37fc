package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 业务计数器
type Metrics struct {
	Requests       *prometheus.CounterVec
	PostsCreated   prometheus.Counter
	PostsEdited    prometheus.Counter
	Comments       prometheus.Counter
	Follows        prometheus.Counter
	Unfollows      prometheus.Counter
	PageCacheHits  *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests
// so repeated construction does not panic on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yatube_http_requests_total",
				Help: "HTTP requests by route and status class",
			},
			[]string{"route", "status"},
		),
		PostsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yatube_posts_created_total",
			Help: "Posts created",
		}),
		PostsEdited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yatube_posts_edited_total",
			Help: "Posts edited by their author",
		}),
		Comments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yatube_comments_created_total",
			Help: "Comments created",
		}),
		Follows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yatube_follows_total",
			Help: "Successful follow requests",
		}),
		Unfollows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yatube_unfollows_total",
			Help: "Successful unfollow requests",
		}),
		PageCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yatube_page_cache_lookups_total",
				Help: "Page cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yatube_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		m.Requests,
		m.PostsCreated,
		m.PostsEdited,
		m.Comments,
		m.Follows,
		m.Unfollows,
		m.PageCacheHits,
		m.RequestLatency,
	)
	return m
}
