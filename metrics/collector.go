// Package metrics provides Prometheus metric collection for T-Mobile gateways.
package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
	"github.com/tmobile-dashboard/gateway-monitor/monitor"
)

// SnapshotSource provides the latest polled gateway state.
type SnapshotSource interface {
	Snapshot() monitor.Snapshot
}

// Collector implements prometheus.Collector for T-Mobile gateway metrics.
// It reports the monitor's last snapshot and never calls the gateway itself.
type Collector struct {
	source SnapshotSource

	// Signal metrics
	rsrpDesc *prometheus.Desc
	rsrqDesc *prometheus.Desc
	sinrDesc *prometheus.Desc
	rssiDesc *prometheus.Desc
	barsDesc *prometheus.Desc

	// Cell metrics
	pciDesc  *prometheus.Desc
	enbDesc  *prometheus.Desc
	tacDesc  *prometheus.Desc
	bandDesc *prometheus.Desc

	// Connection metrics
	connectionTypeDesc *prometheus.Desc
	clientsDesc        *prometheus.Desc
	upDesc             *prometheus.Desc

	// Poll metrics
	pollSuccessDesc  *prometheus.Desc
	pollFailuresDesc *prometheus.Desc
	pollDurationDesc *prometheus.Desc
	lastUpdateDesc   *prometheus.Desc
}

// NewCollector creates a new Collector reading from source.
func NewCollector(source SnapshotSource) *Collector {
	labels := []string{"model"}
	radioLabels := []string{"model", "radio"}

	return &Collector{
		source: source,

		// Signal metrics
		rsrpDesc: prometheus.NewDesc(
			"tmobile_signal_rsrp",
			"Reference Signal Received Power in dBm",
			radioLabels,
			nil,
		),
		rsrqDesc: prometheus.NewDesc(
			"tmobile_signal_rsrq",
			"Reference Signal Received Quality in dB",
			radioLabels,
			nil,
		),
		sinrDesc: prometheus.NewDesc(
			"tmobile_signal_sinr",
			"Signal to Interference Noise Ratio in dB",
			radioLabels,
			nil,
		),
		rssiDesc: prometheus.NewDesc(
			"tmobile_signal_rssi",
			"Received Signal Strength Indicator in dBm",
			radioLabels,
			nil,
		),
		barsDesc: prometheus.NewDesc(
			"tmobile_signal_bars",
			"Signal bars reported by the gateway",
			radioLabels,
			nil,
		),

		// Cell metrics
		pciDesc: prometheus.NewDesc(
			"tmobile_cell_pci",
			"Physical Cell ID",
			radioLabels,
			nil,
		),
		enbDesc: prometheus.NewDesc(
			"tmobile_cell_enb",
			"eNodeB or gNodeB ID",
			radioLabels,
			nil,
		),
		tacDesc: prometheus.NewDesc(
			"tmobile_cell_tac",
			"Tracking Area Code",
			radioLabels,
			nil,
		),
		bandDesc: prometheus.NewDesc(
			"tmobile_cell_band",
			"Current frequency band number",
			radioLabels,
			nil,
		),

		// Connection metrics
		connectionTypeDesc: prometheus.NewDesc(
			"tmobile_connection_type",
			"Connection type (0=none, 1=4G/LTE, 2=5G)",
			labels,
			nil,
		),
		clientsDesc: prometheus.NewDesc(
			"tmobile_clients",
			"Connected client devices",
			labels,
			nil,
		),
		upDesc: prometheus.NewDesc(
			"tmobile_up",
			"Whether the gateway answered recent polls",
			labels,
			nil,
		),

		// Poll metrics
		pollSuccessDesc: prometheus.NewDesc(
			"tmobile_scrape_success",
			"Whether the last poll was successful",
			nil,
			nil,
		),
		pollFailuresDesc: prometheus.NewDesc(
			"tmobile_poll_consecutive_failures",
			"Number of consecutive failed polls",
			nil,
			nil,
		),
		pollDurationDesc: prometheus.NewDesc(
			"tmobile_scrape_duration_seconds",
			"Duration of the last poll in seconds",
			nil,
			nil,
		),
		lastUpdateDesc: prometheus.NewDesc(
			"tmobile_last_update_timestamp_seconds",
			"Unix time of the last poll",
			nil,
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rsrpDesc
	ch <- c.rsrqDesc
	ch <- c.sinrDesc
	ch <- c.rssiDesc
	ch <- c.barsDesc
	ch <- c.pciDesc
	ch <- c.enbDesc
	ch <- c.tacDesc
	ch <- c.bandDesc
	ch <- c.connectionTypeDesc
	ch <- c.clientsDesc
	ch <- c.upDesc
	ch <- c.pollSuccessDesc
	ch <- c.pollFailuresDesc
	ch <- c.pollDurationDesc
	ch <- c.lastUpdateDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Snapshot()
	if snap.LastUpdated.IsZero() {
		// Nothing polled yet.
		return
	}

	success := 1.0
	if snap.LastError != nil {
		success = 0
	}
	ch <- prometheus.MustNewConstMetric(c.pollSuccessDesc, prometheus.GaugeValue, success)
	ch <- prometheus.MustNewConstMetric(c.pollFailuresDesc, prometheus.GaugeValue, float64(snap.ConsecutiveFailures))
	ch <- prometheus.MustNewConstMetric(c.pollDurationDesc, prometheus.GaugeValue, snap.LastDuration.Seconds())
	ch <- prometheus.MustNewConstMetric(c.lastUpdateDesc, prometheus.GaugeValue, float64(snap.LastUpdated.Unix()))

	model := string(snap.Model)
	up := 1.0
	if snap.IsOffline() {
		up = 0
	}
	ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, up, model)

	if !snap.HasState {
		return
	}
	state := snap.State

	var signal *gateway.SignalData
	if state.Main != nil {
		signal = state.Main.Signal
	}

	// Connection type (0 = none, 1 = 4G/LTE, 2 = 5G)
	connectionType := 0.0
	switch radio, _ := signal.Primary(); radio {
	case "5g":
		connectionType = 2
	case "4g":
		connectionType = 1
	}
	ch <- prometheus.MustNewConstMetric(c.connectionTypeDesc, prometheus.GaugeValue, connectionType, model)

	if state.Clients != nil && state.Clients.Clients != nil {
		ch <- prometheus.MustNewConstMetric(c.clientsDesc, prometheus.GaugeValue, float64(state.Clients.Clients.Count()), model)
	}

	var advanced *gateway.AdvancedCellData
	if state.Cell != nil {
		advanced = state.Cell.Cell
	}

	if signal != nil && signal.FiveG != nil {
		var info *gateway.AdvancedCellInfo
		if advanced != nil && advanced.FiveG != nil {
			info = &advanced.FiveG.AdvancedCellInfo
		}
		c.collectRadio(ch, model, "5g", &signal.FiveG.CellSignal, signal.FiveG.GNBID, info)
	}
	if signal != nil && signal.FourG != nil {
		var info *gateway.AdvancedCellInfo
		if advanced != nil && advanced.FourG != nil {
			info = &advanced.FourG.AdvancedCellInfo
		}
		c.collectRadio(ch, model, "4g", &signal.FourG.CellSignal, signal.FourG.ENBID, info)
	}
}

func (c *Collector) collectRadio(ch chan<- prometheus.Metric, model, radio string, cell *gateway.CellSignal, nodeID gateway.Optional[int64], info *gateway.AdvancedCellInfo) {
	gauge := func(desc *prometheus.Desc, v float64, ok bool) {
		if ok {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, model, radio)
		}
	}

	// Signal metrics
	v, ok := cell.RSRP.Get()
	gauge(c.rsrpDesc, v, ok)
	v, ok = cell.RSRQ.Get()
	gauge(c.rsrqDesc, v, ok)
	v, ok = cell.SINR.Get()
	gauge(c.sinrDesc, v, ok)
	v, ok = cell.RSSI.Get()
	gauge(c.rssiDesc, v, ok)
	v, ok = cell.Bars.Get()
	gauge(c.barsDesc, v, ok)

	// Cell metrics
	if id, ok := nodeID.Get(); ok {
		gauge(c.enbDesc, float64(id), true)
	}
	if band, ok := bandNumber(cell.Bands); ok {
		gauge(c.bandDesc, float64(band), true)
	}
	if info != nil {
		v, ok = numeric(info.PCI)
		gauge(c.pciDesc, v, ok)
		v, ok = numeric(info.TAC)
		gauge(c.tacDesc, v, ok)
	}
}

// bandNumber extracts the numeric band from the first entry, e.g. "b66" or
// "n41".
func bandNumber(bands []string) (int, bool) {
	if len(bands) == 0 {
		return 0, false
	}
	digits := strings.TrimLeft(strings.ToLower(bands[0]), "bn")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func numeric(o gateway.Optional[string]) (float64, bool) {
	s, ok := o.Get()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	// TACs are sometimes reported in hex.
	if v, err := strconv.ParseInt(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64); err == nil {
		return float64(v), true
	}
	return 0, false
}
