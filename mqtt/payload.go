package mqtt

import (
	"encoding/json"
	"strings"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
	"github.com/tmobile-dashboard/gateway-monitor/monitor"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string
	Payload []byte
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	Device            haDevice `json:"device"`
}

// sensor describes one value in the state payload that HA should expose.
type sensor struct {
	key         string
	name        string
	unit        string
	deviceClass string
	numeric     bool
}

var sensors = []sensor{
	{key: "connection", name: "Connection"},
	{key: "rsrp_5g", name: "5G RSRP", unit: "dBm", deviceClass: "signal_strength", numeric: true},
	{key: "rsrq_5g", name: "5G RSRQ", unit: "dB", numeric: true},
	{key: "sinr_5g", name: "5G SINR", unit: "dB", numeric: true},
	{key: "band_5g", name: "5G Band"},
	{key: "rsrp_4g", name: "LTE RSRP", unit: "dBm", deviceClass: "signal_strength", numeric: true},
	{key: "rsrq_4g", name: "LTE RSRQ", unit: "dB", numeric: true},
	{key: "sinr_4g", name: "LTE SINR", unit: "dB", numeric: true},
	{key: "band_4g", name: "LTE Band"},
	{key: "clients", name: "Clients", numeric: true},
}

// statePayload flattens a snapshot into the JSON document published on the
// state topic. Absent readings are omitted.
func statePayload(snap monitor.Snapshot) ([]byte, error) {
	doc := map[string]any{
		"model":   string(snap.Model),
		"session": snap.Session.String(),
		"online":  !snap.IsOffline(),
	}
	if !snap.LastUpdated.IsZero() {
		doc["updated"] = snap.LastUpdated.Unix()
	}
	if snap.LastError != nil {
		doc["error"] = gateway.KindOf(snap.LastError).String()
	}

	state := snap.State
	if state.Main != nil {
		connection, _ := state.Main.Signal.Primary()
		if connection == "" {
			connection = "none"
		}
		doc["connection"] = connection

		if sig := state.Main.Signal; sig != nil {
			if sig.FiveG != nil {
				addRadio(doc, "5g", &sig.FiveG.CellSignal)
			}
			if sig.FourG != nil {
				addRadio(doc, "4g", &sig.FourG.CellSignal)
			}
		}
	}
	if state.Clients != nil && state.Clients.Clients != nil {
		doc["clients"] = state.Clients.Clients.Count()
	}
	return json.Marshal(doc)
}

func addRadio(doc map[string]any, radio string, cell *gateway.CellSignal) {
	put := func(key string, o gateway.Optional[float64]) {
		if v, ok := o.Get(); ok {
			doc[key+"_"+radio] = v
		}
	}
	put("rsrp", cell.RSRP)
	put("rsrq", cell.RSRQ)
	put("sinr", cell.SINR)
	put("rssi", cell.RSSI)
	put("bars", cell.Bars)
	if len(cell.Bands) > 0 {
		doc["band_"+radio] = strings.Join(cell.Bands, ",")
	}
}

// deviceInfo builds the HA device block from whatever the gateway reported.
func deviceInfo(snap monitor.Snapshot) haDevice {
	dev := haDevice{Name: "T-Mobile Gateway", Manufacturer: "T-Mobile"}
	id := "tmobile_gateway"
	if snap.State.Main != nil && snap.State.Main.Device != nil {
		d := snap.State.Main.Device
		if serial, ok := d.Serial.Get(); ok && serial != "" {
			id = "tmobile_" + sanitize(serial)
		}
		dev.Manufacturer = d.Manufacturer.Or(dev.Manufacturer)
		dev.Model = d.Model.Or("")
		dev.SWVersion = d.SoftwareVersion.Or("")
		dev.Name = d.FriendlyName.Or(dev.Name)
	}
	dev.Identifiers = []string{id}
	return dev
}

// buildDiscovery returns one HA sensor config per exposed value.
func buildDiscovery(snap monitor.Snapshot, prefix string) []discoveryMsg {
	dev := deviceInfo(snap)
	id := dev.Identifiers[0]

	msgs := make([]discoveryMsg, 0, len(sensors))
	for _, s := range sensors {
		d := haDiscovery{
			Name:              s.name,
			UniqueID:          id + "_" + s.key,
			StateTopic:        prefix + "/state",
			AvailabilityTopic: prefix + "/availability",
			ValueTemplate:     "{{ value_json." + s.key + " }}",
			UnitOfMeasurement: s.unit,
			DeviceClass:       s.deviceClass,
			Device:            dev,
		}
		if s.numeric {
			d.StateClass = "measurement"
		}
		payload, err := json.Marshal(d)
		if err != nil {
			continue
		}
		msgs = append(msgs, discoveryMsg{
			Topic:   "homeassistant/sensor/" + id + "/" + s.key + "/config",
			Payload: payload,
		})
	}
	return msgs
}

// sanitize keeps only characters safe for MQTT topics and HA IDs.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return '_'
	}, s)
}
