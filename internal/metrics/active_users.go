package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ActiveUsersCounter is satisfied by application.ActiveUsersService.
type ActiveUsersCounter interface {
	CountActive(ctx context.Context, timespan time.Duration, cleanup bool) (int64, error)
}

// ActiveUsersCollector reads the active-user windows on every scrape. The
// widest window trims the underlying set, so it is read last.
type ActiveUsersCollector struct {
	counter ActiveUsersCounter
	logger  logrus.FieldLogger
	timeout time.Duration
	hour    *prometheus.Desc
	day     *prometheus.Desc
}

func NewActiveUsersCollector(counter ActiveUsersCounter, logger logrus.FieldLogger) *ActiveUsersCollector {
	return &ActiveUsersCollector{
		counter: counter,
		logger:  logger,
		timeout: 2 * time.Second,
		hour: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_users_1h"),
			"Distinct users active in the last hour.", nil, nil),
		day: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_users_24h"),
			"Distinct users active in the last 24 hours.", nil, nil),
	}
}

func (c *ActiveUsersCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hour
	ch <- c.day
}

func (c *ActiveUsersCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	c.collect(ctx, ch, c.hour, time.Hour, false)
	c.collect(ctx, ch, c.day, 24*time.Hour, true)
}

func (c *ActiveUsersCollector) collect(ctx context.Context, ch chan<- prometheus.Metric, desc *prometheus.Desc, window time.Duration, cleanup bool) {
	n, err := c.counter.CountActive(ctx, window, cleanup)
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).WithField("window", window.String()).Warn("count active users failed")
		}
		ch <- prometheus.NewInvalidMetric(desc, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(n))
}
