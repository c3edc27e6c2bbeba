package gateway

import (
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// mockTransport answers unified API requests with canned data. Signal values
// are randomized on every request so a UI driven by it looks alive.
type mockTransport struct {
	includeLTE    bool
	includeSixGig bool
	now           func() time.Time
}

func newMockTransport() *mockTransport {
	return &mockTransport{includeLTE: true, now: time.Now}
}

// between returns a random int in [lo, hi).
func between(lo, hi int) int {
	return lo + rand.IntN(hi-lo)
}

type mockSignal struct {
	rsrp4g, rssi4g, rsrq4g, sinr4g float64
	rsrp5g, rssi5g, rsrq5g, sinr5g float64
	bars                           float64
}

func newMockSignal() mockSignal {
	var s mockSignal
	rsrp4g := between(-120, -80)
	rsrq4g := between(-12, 5)
	sinr4g := between(-2, 20)
	rsrp5g := rsrp4g - between(-10, 12)

	s.rsrp4g = float64(rsrp4g)
	s.rssi4g = float64(rsrp4g - between(5, 10))
	s.rsrq4g = float64(rsrq4g)
	s.sinr4g = float64(sinr4g)
	s.rsrp5g = float64(rsrp5g)
	s.rssi5g = float64(rsrp5g - between(5, 10))
	s.rsrq5g = float64(rsrq4g - between(-4, 4))
	s.sinr5g = float64(sinr4g - between(-3, 7))
	s.bars = float64(between(0, 6))
	return s
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		req.Body.Close()
	}

	endpoint := strings.TrimPrefix(req.URL.Path, "/"+unifiedBasePath)
	if req.URL.RawQuery != "" {
		endpoint += "?" + req.URL.RawQuery
	}

	var body string
	switch endpoint {
	case unifiedSetWifi, unifiedReset, unifiedReboot:
	default:
		payload := m.payload(endpoint, newMockSignal())
		if payload == nil {
			body = "Unsupported!"
			break
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = string(data)
	}

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

func (m *mockTransport) payload(endpoint string, s mockSignal) any {
	switch endpoint {
	case unifiedAuth:
		return LoginResultData{
			Auth: &AuthData{
				Expiration:       Some(m.now().Add(time.Hour).Unix()),
				RefreshCountLeft: Some[int64](4),
				RefreshCountMax:  Some[int64](4),
				Token:            Some("mock-token"),
			},
		}
	case unifiedGatewayInfo:
		return m.gatewayInfo(s)
	case unifiedGetWifi:
		return m.wifi()
	case unifiedClients:
		return m.clients()
	case unifiedCell:
		return m.cell(s)
	case unifiedSim:
		return SimDataRoot{
			Sim: &SimData{
				ICCID:  Some("1856372956105738573"),
				IMEI:   Some("126504487235463"),
				IMSI:   Some("684367390758466"),
				MSISDN: Some("18564345678"),
				Status: Some(true),
			},
		}
	}
	return nil
}

func (m *mockTransport) sector4g(s mockSignal, bars float64) *CellDataLTE {
	return &CellDataLTE{
		CellSignal: CellSignal{
			Bands: []string{"b2"},
			Bars:  Some(bars),
			CID:   Some[int64](12),
			RSRP:  Some(s.rsrp4g),
			RSRQ:  Some(s.rsrq4g),
			RSSI:  Some(s.rssi4g),
			SINR:  Some(s.sinr4g),
		},
		ENBID: Some[int64](310463),
	}
}

func (m *mockTransport) sector5g(s mockSignal, bars float64) *CellData5G {
	return &CellData5G{
		CellSignal: CellSignal{
			Bands: []string{"n41"},
			Bars:  Some(bars),
			CID:   Some[int64](0),
			RSRP:  Some(s.rsrp5g),
			RSRQ:  Some(s.rsrq5g),
			RSSI:  Some(s.rssi5g),
			SINR:  Some(s.sinr5g),
		},
		GNBID: Some[int64](0),
	}
}

func mockGeneric() *GenericData {
	return &GenericData{
		APN:          Some("FBB.HOME"),
		HasIPv6:      Some(true),
		Registration: Some("registered"),
		Roaming:      Some(false),
	}
}

func (m *mockTransport) gatewayInfo(s mockSignal) MainData {
	data := MainData{
		Device: &DeviceData{
			FriendlyName:    Some("5G Gateway"),
			HardwareVersion: Some("R01"),
			IsEnabled:       Some(true),
			IsMeshSupported: Some(true),
			MacID:           Some("11:AC:67:81:18:86"),
			Manufacturer:    Some("Arcadyan"),
			ManufacturerOUI: Some("001A2A"),
			Model:           Some("KVD21"),
			Name:            Some("5G Gateway"),
			Role:            Some("gateway"),
			Serial:          Some("123456789B"),
			SoftwareVersion: Some("1.00.18"),
			Type:            Some("HSID"),
			UpdateState:     Some("latest"),
		},
		Signal: &SignalData{
			FiveG:   m.sector5g(s, s.bars),
			Generic: mockGeneric(),
		},
		Time: &TimeData{
			DaylightSavings: &DaylightSavingsData{IsUsed: Some(true)},
			LocalTime:       Some(m.now().Unix()),
			LocalTimeZone:   Some("<-04>4"),
			UpTime:          Some[int64](30996),
		},
	}
	if m.includeLTE {
		data.Signal.FourG = m.sector4g(s, s.bars)
	}
	return data
}

func mockBand(bandwidth string) *BandConfig {
	return &BandConfig{
		AirtimeFairness:   Some(true),
		Channel:           Some("Auto"),
		ChannelBandwidth:  Some(bandwidth),
		IsMUMIMOEnabled:   Some(true),
		IsRadioEnabled:    Some(false),
		IsWMMEnabled:      Some(true),
		MaxClients:        Some[int64](128),
		Mode:              Some("auto"),
		TransmissionPower: Some("100%"),
	}
}

func (m *mockTransport) wifi() WifiConfig {
	ssid := SSIDConfig{
		TwoGigSSID:         Some(true),
		FiveGigSSID:        Some(true),
		EncryptionMode:     Some("AES"),
		EncryptionVersion:  Some("WPA2/WPA3"),
		Guest:              Some(false),
		IsBroadcastEnabled: Some(true),
		SSIDName:           Some("WIFI_SSID"),
		WPAKey:             Some("some_wifi_password"),
	}
	cfg := WifiConfig{
		TwoGig:       mockBand("Auto"),
		FiveGig:      mockBand("80MHz"),
		BandSteering: &BandSteeringConfig{IsEnabled: Some(true)},
	}
	if m.includeSixGig {
		cfg.SixGig = mockBand("80MHz")
		ssid.SixGigSSID = Some(true)
	}
	cfg.SSIDs = []SSIDConfig{ssid}
	return cfg
}

func (m *mockTransport) clients() ClientDeviceData {
	return ClientDeviceData{
		Clients: &ClientsData{
			Ethernet: []ClientData{{
				Connected: Some(true),
				IPv4:      Some("192.168.12.187"),
				IPv6:      []string{"fe80::7a45:58ff:fee6:72c6"},
				MAC:       Some("D2:B5:49:86:71:DE"),
				Name:      Some(""),
			}},
		},
	}
}

func (m *mockTransport) cell(s mockSignal) CellDataRoot {
	cell := &AdvancedCellData{
		FiveG: &AdvancedData5G{
			AdvancedCellInfo: AdvancedCellInfo{
				Bandwidth:      Some("100M"),
				CQI:            Some[int64](12),
				EARFCN:         Some("520110"),
				ECGI:           Some("3102600"),
				MCC:            Some("310"),
				MNC:            Some("260"),
				PCI:            Some("781"),
				PLMN:           Some("310260"),
				Status:         Some(true),
				SupportedBands: []string{"n25", "n41", "n66", "n71"},
				TAC:            Some("0"),
			},
			Sector: m.sector5g(s, 4),
		},
		Generic: mockGeneric(),
		GPS: &GPSData{
			Latitude:  Some(39.9526),
			Longitude: Some(-75.1652),
		},
	}
	if m.includeLTE {
		cell.FourG = &AdvancedDataLTE{
			AdvancedCellInfo: AdvancedCellInfo{
				Bandwidth:      Some("15M"),
				CQI:            Some[int64](9),
				EARFCN:         Some("875"),
				ECGI:           Some("31026079478540"),
				MCC:            Some("310"),
				MNC:            Some("260"),
				PCI:            Some("63"),
				PLMN:           Some("310260"),
				Status:         Some(true),
				SupportedBands: []string{"b2", "b4", "b5", "b12", "b41", "b46", "b66", "b71"},
				TAC:            Some("22233"),
			},
			Sector: m.sector4g(s, 2),
		}
	}
	return CellDataRoot{Cell: cell}
}
