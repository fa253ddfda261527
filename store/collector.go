package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes store activity to prometheus. Register it with the
// application's registry; the store itself never registers anything.
type Collector struct {
	store *Store

	saves  *prometheus.Desc
	loads  *prometheus.Desc
	merges *prometheus.Desc
}

func NewCollector(s *Store) *Collector {
	return &Collector{
		store: s,

		saves: prometheus.NewDesc(
			"mutantic_store_saves_total",
			"Total number of document saves",
			nil, nil,
		),
		loads: prometheus.NewDesc(
			"mutantic_store_loads_total",
			"Total number of document loads",
			nil, nil,
		),
		merges: prometheus.NewDesc(
			"mutantic_store_blob_merges_total",
			"Total number of CRDT blob merges performed by the merge operator",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.saves
	ch <- c.loads
	ch <- c.merges
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.saves, prometheus.CounterValue, float64(c.store.saves.Load()))
	ch <- prometheus.MustNewConstMetric(c.loads, prometheus.CounterValue, float64(c.store.loads.Load()))
	ch <- prometheus.MustNewConstMetric(c.merges, prometheus.CounterValue, float64(c.store.merges.Load()))
}
