package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
	"github.com/tmobile-dashboard/gateway-monitor/monitor"
)

type staticSource monitor.Snapshot

func (s staticSource) Snapshot() monitor.Snapshot { return monitor.Snapshot(s) }

// scrape renders the registry in the text exposition format.
func scrape(t *testing.T, cs ...prometheus.Collector) string {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	for _, c := range cs {
		require.NoError(t, reg.Register(c))
	}
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func fullState() gateway.State {
	return gateway.State{
		Main: &gateway.MainData{
			Signal: &gateway.SignalData{
				FiveG: &gateway.CellData5G{
					CellSignal: gateway.CellSignal{
						Bands: []string{"n41"},
						Bars:  gateway.Some(4.0),
						RSRP:  gateway.Some(-95.0),
						RSRQ:  gateway.Some(-11.0),
						SINR:  gateway.Some(12.0),
					},
					GNBID: gateway.Some(int64(1234)),
				},
				FourG: &gateway.CellDataLTE{
					CellSignal: gateway.CellSignal{
						Bands: []string{"b66"},
						RSRP:  gateway.Some(-101.0),
					},
					ENBID: gateway.Some(int64(5678)),
				},
			},
		},
		Cell: &gateway.CellDataRoot{Cell: &gateway.AdvancedCellData{
			FiveG: &gateway.AdvancedData5G{AdvancedCellInfo: gateway.AdvancedCellInfo{
				PCI: gateway.Some("371"),
				TAC: gateway.Some("0x1A2B"),
			}},
		}},
		Clients: &gateway.ClientDeviceData{Clients: &gateway.ClientsData{
			FiveGig:  []gateway.ClientData{{}, {}},
			Ethernet: []gateway.ClientData{{}},
		}},
	}
}

func TestCollector_FullSnapshot(t *testing.T) {
	src := staticSource{
		Model:        gateway.ModelMock,
		State:        fullState(),
		HasState:     true,
		LastUpdated:  time.Unix(1700000000, 0),
		LastDuration: 250 * time.Millisecond,
	}
	out := scrape(t, NewCollector(src))

	assert.Contains(t, out, `tmobile_signal_rsrp{model="mock",radio="5g"} -95`)
	assert.Contains(t, out, `tmobile_signal_rsrp{model="mock",radio="4g"} -101`)
	assert.Contains(t, out, `tmobile_signal_bars{model="mock",radio="5g"} 4`)
	assert.Contains(t, out, `tmobile_cell_enb{model="mock",radio="5g"} 1234`)
	assert.Contains(t, out, `tmobile_cell_enb{model="mock",radio="4g"} 5678`)
	assert.Contains(t, out, `tmobile_cell_band{model="mock",radio="5g"} 41`)
	assert.Contains(t, out, `tmobile_cell_band{model="mock",radio="4g"} 66`)
	assert.Contains(t, out, `tmobile_cell_pci{model="mock",radio="5g"} 371`)
	assert.Contains(t, out, `tmobile_cell_tac{model="mock",radio="5g"} 6699`)
	assert.Contains(t, out, `tmobile_connection_type{model="mock"} 2`)
	assert.Contains(t, out, `tmobile_clients{model="mock"} 3`)
	assert.Contains(t, out, `tmobile_up{model="mock"} 1`)
	assert.Contains(t, out, `tmobile_scrape_success 1`)
	assert.Contains(t, out, `tmobile_scrape_duration_seconds 0.25`)
	assert.Contains(t, out, `tmobile_last_update_timestamp_seconds 1.7e+09`)

	// Missing values are omitted, not reported as zero.
	assert.NotContains(t, out, `tmobile_signal_rsrq{model="mock",radio="4g"}`)
	assert.NotContains(t, out, `tmobile_cell_pci{model="mock",radio="4g"}`)
}

func TestCollector_FailedPolls(t *testing.T) {
	src := staticSource{
		Model:               gateway.ModelUnified,
		LastUpdated:         time.Unix(1700000000, 0),
		LastError:           errors.New("boom"),
		ConsecutiveFailures: 3,
	}
	out := scrape(t, NewCollector(src))

	assert.Contains(t, out, `tmobile_scrape_success 0`)
	assert.Contains(t, out, `tmobile_poll_consecutive_failures 3`)
	assert.Contains(t, out, `tmobile_up{model="unified"} 0`)
	assert.NotContains(t, out, `tmobile_connection_type`)
}

func TestCollector_NothingPolled(t *testing.T) {
	out := scrape(t, NewCollector(staticSource{}))
	assert.NotContains(t, out, "tmobile_")
}

func TestCollector_LTEOnly(t *testing.T) {
	state := fullState()
	state.Main.Signal.FiveG = nil
	src := staticSource{Model: gateway.ModelLegacy, State: state, HasState: true, LastUpdated: time.Now()}
	out := scrape(t, NewCollector(src))

	assert.Contains(t, out, `tmobile_connection_type{model="legacy"} 1`)
	assert.NotContains(t, out, `radio="5g"`)
}

func TestBandNumber(t *testing.T) {
	n, ok := bandNumber([]string{"b2", "b66"})
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	n, ok = bandNumber([]string{"N71"})
	assert.True(t, ok)
	assert.Equal(t, 71, n)

	_, ok = bandNumber(nil)
	assert.False(t, ok)
	_, ok = bandNumber([]string{"unknown"})
	assert.False(t, ok)
}

func TestErrorCounter(t *testing.T) {
	c := NewErrorCounter()
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))

	c.AddBreadcrumb("Making request.", map[string]string{"method": "GET", "url": "x"})
	c.AddBreadcrumb("Making request.", map[string]string{"method": "GET", "url": "y"})
	c.AddBreadcrumb("Making request.", map[string]string{"method": "POST", "url": "z"})
	c.AddBreadcrumb("other", nil)
	c.Notify(&gateway.Error{Kind: gateway.KindTimeout})
	c.Notify(errors.New("plain"))
	c.Notify(nil)

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	out := rec.Body.String()

	assert.Contains(t, out, `tmobile_gateway_requests_total{method="GET"} 2`)
	assert.Contains(t, out, `tmobile_gateway_requests_total{method="POST"} 1`)
	assert.Contains(t, out, `tmobile_gateway_errors_total{kind="timeout"} 1`)
	assert.Contains(t, out, `tmobile_gateway_errors_total{kind="unknown"} 1`)
}
