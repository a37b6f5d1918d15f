package iccom

import (
	"log"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is the introspection surface from spec.md §6: transport xfer
// count and bytes, package outcomes, packets/messages received, messages
// ready, and consumer bytes received. Counters are best-effort atomics -
// cheap where it matters, not synchronized with the hot path for exact
// consistency (spec.md §5, §9).
type Stats struct {
	xferCount             uint64
	bytesXfered            uint64
	packagesXfered         uint64
	packagesFailed         uint64
	packagesOK             uint64
	packagesDuplicated     uint64
	packagesBad            uint64
	packagesParseFailed    uint64
	transportFaults        uint64
	packetsReceivedOK      uint64
	messagesReceivedOK     uint64
	messagesReady          uint64
	consumerBytesReceived  uint64

	depthFn func() int
}

func NewStats() *Stats { return &Stats{} }

func (s *Stats) setDepthFn(fn func() int) { s.depthFn = fn }

func (s *Stats) incXfer(n int) {
	atomic.AddUint64(&s.xferCount, 1)
	atomic.AddUint64(&s.bytesXfered, uint64(n))
}
func (s *Stats) incPackagesXfered()      { atomic.AddUint64(&s.packagesXfered, 1) }
func (s *Stats) incPackagesFailed()      { atomic.AddUint64(&s.packagesFailed, 1) }
func (s *Stats) incPackagesOK()          { atomic.AddUint64(&s.packagesOK, 1) }
func (s *Stats) incPackagesDuplicated()  { atomic.AddUint64(&s.packagesDuplicated, 1) }
func (s *Stats) incPackagesBad()         { atomic.AddUint64(&s.packagesBad, 1) }
func (s *Stats) incPackagesParseFailed() { atomic.AddUint64(&s.packagesParseFailed, 1) }
func (s *Stats) incTransportFault()      { atomic.AddUint64(&s.transportFaults, 1) }
func (s *Stats) incPacketsReceived(n int) {
	atomic.AddUint64(&s.packetsReceivedOK, uint64(n))
}
func (s *Stats) incMessagesReceivedOK() { atomic.AddUint64(&s.messagesReceivedOK, 1) }
func (s *Stats) incMessagesReady()      { atomic.AddUint64(&s.messagesReady, 1) }
func (s *Stats) addConsumerBytes(n int) { atomic.AddUint64(&s.consumerBytesReceived, uint64(n)) }

// Snapshot is a point-in-time, best-effort copy of the counters.
type Snapshot struct {
	XferCount             uint64
	BytesXfered           uint64
	PackagesXfered        uint64
	PackagesFailed        uint64
	PackagesOK            uint64
	PackagesDuplicated    uint64
	PackagesBad           uint64
	PackagesParseFailed   uint64
	TransportFaults       uint64
	TXQueueDepth          int
	PacketsReceivedOK     uint64
	MessagesReceivedOK    uint64
	MessagesReady         uint64
	ConsumerBytesReceived uint64
}

func (s *Stats) Snapshot() Snapshot {
	depth := 0
	if s.depthFn != nil {
		depth = s.depthFn()
	}
	return Snapshot{
		XferCount:             atomic.LoadUint64(&s.xferCount),
		BytesXfered:           atomic.LoadUint64(&s.bytesXfered),
		PackagesXfered:        atomic.LoadUint64(&s.packagesXfered),
		PackagesFailed:        atomic.LoadUint64(&s.packagesFailed),
		PackagesOK:            atomic.LoadUint64(&s.packagesOK),
		PackagesDuplicated:    atomic.LoadUint64(&s.packagesDuplicated),
		PackagesBad:           atomic.LoadUint64(&s.packagesBad),
		PackagesParseFailed:   atomic.LoadUint64(&s.packagesParseFailed),
		TransportFaults:       atomic.LoadUint64(&s.transportFaults),
		TXQueueDepth:          depth,
		PacketsReceivedOK:     atomic.LoadUint64(&s.packetsReceivedOK),
		MessagesReceivedOK:    atomic.LoadUint64(&s.messagesReceivedOK),
		MessagesReady:         atomic.LoadUint64(&s.messagesReady),
		ConsumerBytesReceived: atomic.LoadUint64(&s.consumerBytesReceived),
	}
}

func logGovernorReport(r Report) {
	prefix := "WARN"
	if r.Severity == "error" {
		prefix = "ERROR"
	}
	log.Printf("[%s] iccom: %s rate=%d/s total=%d", prefix, r.Message, r.RatePerSec, r.Total)
}

// Collector exposes the engine's introspection surface as Prometheus
// metrics, the same Collect/Describe shape
// open-source-firmware-go-tcg-storage/cmd/tcgdiskstat/metric.go uses for
// its drive-status gauges.
type Collector struct {
	stats *Stats
}

func NewCollector(stats *Stats) *Collector {
	return &Collector{stats: stats}
}

var (
	descXferCount        = prometheus.NewDesc("iccom_xfer_count_total", "Total transport xfers completed.", nil, nil)
	descBytesXfered      = prometheus.NewDesc("iccom_bytes_xfered_total", "Total bytes exchanged over the transport.", nil, nil)
	descPackagesXfered   = prometheus.NewDesc("iccom_packages_xfered_total", "Packages advanced out of the TX queue on positive ACK.", nil, nil)
	descPackagesFailed   = prometheus.NewDesc("iccom_packages_failed_total", "Data packages NACKed or unacknowledged by the peer.", nil, nil)
	descPackagesOK       = prometheus.NewDesc("iccom_packages_received_ok_total", "Received packages that validated and applied cleanly.", nil, nil)
	descPackagesDup      = prometheus.NewDesc("iccom_packages_duplicated_total", "Received packages dropped as duplicates.", nil, nil)
	descPackagesBad      = prometheus.NewDesc("iccom_packages_bad_total", "Received packages that failed structural/CRC validation.", nil, nil)
	descPackagesParse    = prometheus.NewDesc("iccom_packages_parse_failed_total", "Received packages whose payload failed to parse into packets.", nil, nil)
	descTransportFaults  = prometheus.NewDesc("iccom_transport_faults_total", "Transport-level xfer failures reported by the driver.", nil, nil)
	descTXQueueDepth     = prometheus.NewDesc("iccom_tx_queue_depth", "Current number of packages queued for transmission.", nil, nil)
	descPacketsReceived  = prometheus.NewDesc("iccom_packets_received_ok_total", "Packets successfully parsed out of received packages.", nil, nil)
	descMessagesReceived = prometheus.NewDesc("iccom_messages_received_ok_total", "Packets successfully applied to the RX store.", nil, nil)
	descMessagesReady    = prometheus.NewDesc("iccom_messages_ready_total", "Messages finalized and ready for consumer delivery.", nil, nil)
	descConsumerBytes    = prometheus.NewDesc("iccom_consumer_bytes_received_total", "Payload bytes received across all channels.", nil, nil)
)

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	ch <- prometheus.MustNewConstMetric(descXferCount, prometheus.CounterValue, float64(snap.XferCount))
	ch <- prometheus.MustNewConstMetric(descBytesXfered, prometheus.CounterValue, float64(snap.BytesXfered))
	ch <- prometheus.MustNewConstMetric(descPackagesXfered, prometheus.CounterValue, float64(snap.PackagesXfered))
	ch <- prometheus.MustNewConstMetric(descPackagesFailed, prometheus.CounterValue, float64(snap.PackagesFailed))
	ch <- prometheus.MustNewConstMetric(descPackagesOK, prometheus.CounterValue, float64(snap.PackagesOK))
	ch <- prometheus.MustNewConstMetric(descPackagesDup, prometheus.CounterValue, float64(snap.PackagesDuplicated))
	ch <- prometheus.MustNewConstMetric(descPackagesBad, prometheus.CounterValue, float64(snap.PackagesBad))
	ch <- prometheus.MustNewConstMetric(descPackagesParse, prometheus.CounterValue, float64(snap.PackagesParseFailed))
	ch <- prometheus.MustNewConstMetric(descTransportFaults, prometheus.CounterValue, float64(snap.TransportFaults))
	ch <- prometheus.MustNewConstMetric(descTXQueueDepth, prometheus.GaugeValue, float64(snap.TXQueueDepth))
	ch <- prometheus.MustNewConstMetric(descPacketsReceived, prometheus.CounterValue, float64(snap.PacketsReceivedOK))
	ch <- prometheus.MustNewConstMetric(descMessagesReceived, prometheus.CounterValue, float64(snap.MessagesReceivedOK))
	ch <- prometheus.MustNewConstMetric(descMessagesReady, prometheus.CounterValue, float64(snap.MessagesReady))
	ch <- prometheus.MustNewConstMetric(descConsumerBytes, prometheus.CounterValue, float64(snap.ConsumerBytesReceived))
}
