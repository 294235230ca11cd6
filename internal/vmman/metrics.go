package vmman

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a ManagedRange's live state as Prometheus gauges and
// counters, replacing a hand-rolled text exporter with the real
// client_golang exposition format. Register one per manager instance;
// every metric carries the manager's uuid as a label so independent
// managers in the same process (spec.md §9 requires supporting more than
// one) are distinguishable in scrape output.
type Collector struct {
	m *ManagedRange

	regionCount   *prometheus.Desc
	bytesMapped   *prometheus.Desc
	bytesInUse    *prometheus.Desc
	bytesFree     *prometheus.Desc
	mapTotal      *prometheus.Desc
	unmapTotal    *prometheus.Desc
	remapTotal    *prometheus.Desc
	sanityFailure *prometheus.Desc
}

// NewCollector builds a Collector for m. Call prometheus.Register(c) (or
// MustRegister) to expose it.
func NewCollector(m *ManagedRange) *Collector {
	labels := []string{"manager_id"}
	return &Collector{
		m:             m,
		regionCount:   prometheus.NewDesc("vmman_live_regions", "Number of currently live regions.", labels, nil),
		bytesMapped:   prometheus.NewDesc("vmman_bytes_mapped", "Bytes currently mapped (end - map).", labels, nil),
		bytesInUse:    prometheus.NewDesc("vmman_heap_bytes_in_use", "Heap bytes in use (brk - start).", labels, nil),
		bytesFree:     prometheus.NewDesc("vmman_bytes_free", "Free headroom between brk and map.", labels, nil),
		mapTotal:      prometheus.NewDesc("vmman_map_total", "Cumulative successful map calls.", labels, nil),
		unmapTotal:    prometheus.NewDesc("vmman_unmap_total", "Cumulative successful unmap calls.", labels, nil),
		remapTotal:    prometheus.NewDesc("vmman_remap_total", "Cumulative successful remap calls.", labels, nil),
		sanityFailure: prometheus.NewDesc("vmman_sanity_failures_total", "Cumulative sanity predicate failures.", labels, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.regionCount
	ch <- c.bytesMapped
	ch <- c.bytesInUse
	ch <- c.bytesFree
	ch <- c.mapTotal
	ch <- c.unmapTotal
	ch <- c.remapTotal
	ch <- c.sanityFailure
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.m.mu.Lock()
	label := c.m.id.String()
	regionCount := c.m.regionCount()
	bytesMapped := uint64(c.m.end - c.m.mapFrontier)
	bytesInUse := uint64(c.m.brk - c.m.start)
	bytesFree := uint64(c.m.mapFrontier - c.m.brk)
	mapTotal := c.m.stats.mapCount
	unmapTotal := c.m.stats.unmapCount
	remapTotal := c.m.stats.remapCount
	sanityFailures := c.m.stats.sanityFailures
	c.m.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(c.regionCount, prometheus.GaugeValue, float64(regionCount), label)
	ch <- prometheus.MustNewConstMetric(c.bytesMapped, prometheus.GaugeValue, float64(bytesMapped), label)
	ch <- prometheus.MustNewConstMetric(c.bytesInUse, prometheus.GaugeValue, float64(bytesInUse), label)
	ch <- prometheus.MustNewConstMetric(c.bytesFree, prometheus.GaugeValue, float64(bytesFree), label)
	ch <- prometheus.MustNewConstMetric(c.mapTotal, prometheus.CounterValue, float64(mapTotal), label)
	ch <- prometheus.MustNewConstMetric(c.unmapTotal, prometheus.CounterValue, float64(unmapTotal), label)
	ch <- prometheus.MustNewConstMetric(c.remapTotal, prometheus.CounterValue, float64(remapTotal), label)
	ch <- prometheus.MustNewConstMetric(c.sanityFailure, prometheus.CounterValue, float64(sanityFailures), label)
}
