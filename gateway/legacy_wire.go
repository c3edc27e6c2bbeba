package gateway

import (
	"math"
	"strconv"
	"strings"
)

// Legacy API endpoints, relative to the gateway root.
const (
	legacyLoginPath            = "login_web_app.cgi"
	legacyDeviceStatusPath     = "device_status_web_app.cgi?getroot"
	legacyDeviceInfoStatusPath = "dashboard_device_info_status_web_app.cgi"
	legacyCellStatusPath       = "cell_status_app.cgi"
	legacyRadioStatusPath      = "fastmile_radio_status_web_app.cgi"
	legacyWifiListingPath      = "wlan_list_web_app.cgi"
	legacyStatisticsPath       = "statistics_status_web_app.cgi"
	legacyServiceFunctionPath  = "service_function_web_app.cgi"
)

// legacyChannelUnset is the channel number the gateway reports for a radio
// that is not attached.
const legacyChannelUnset = math.MaxUint32

type legacyDeviceInfoStatus struct {
	DeviceAppStatus []legacyDeviceAppStatus `json:"device_app_status"`
	DeviceConfig    []legacyDeviceConfig    `json:"device_cfg"`
}

type legacyDeviceAppStatus struct {
	Description     Optional[string] `json:"Description"`
	Manufacturer    Optional[string] `json:"Manufacturer"`
	ProductClass    Optional[string] `json:"ProductClass"`
	HardwareVersion Optional[string] `json:"HardwareVersion"`
	SoftwareVersion Optional[string] `json:"SoftwareVersion"`
	SerialNumber    Optional[string] `json:"SerialNumber"`
	UpTime          Optional[int64]  `json:"UpTime"`
}

type legacyDeviceConfig struct {
	HostName      Optional[string] `json:"HostName"`
	IPAddress     Optional[string] `json:"IPAddress"`
	MACAddress    Optional[string] `json:"MACAddress"`
	InterfaceType Optional[string] `json:"InterfaceType"`
	Active        Optional[int64]  `json:"Active"`
}

type legacyCellStatus struct {
	LTE     []legacyCellStat    `json:"cell_stat_lte"`
	NR      []legacyCellStat    `json:"cell_stat_5G"`
	Generic []legacyCellGeneric `json:"cell_stat_generic"`
}

type legacyCellStat struct {
	RSRP              Optional[float64] `json:"RSRP"`
	RSRQ              Optional[float64] `json:"RSRQ"`
	RSSI              Optional[float64] `json:"RSSI"`
	SNR               Optional[float64] `json:"SNR"`
	Band              Optional[string]  `json:"Band"`
	ENBID             Optional[int64]   `json:"eNBID"`
	RSRPStrengthIndex Optional[float64] `json:"RSRPStrengthIndex"`
	CQI               Optional[int64]   `json:"CQI"`
	ECGI              Optional[string]  `json:"ECGI"`
	Bandwidth         Optional[string]  `json:"Bandwidth"`
	MCC               Optional[string]  `json:"MCC"`
	MNC               Optional[string]  `json:"MNC"`
	PLMNName          Optional[string]  `json:"PLMNName"`
}

type legacyCellGeneric struct {
	RoamingStatus Optional[string] `json:"RoamingStatus"`
	TAC           Optional[string] `json:"TAC"`
}

type legacyRadioStatus struct {
	LTE []legacyRadioEntry `json:"cell_LTE_stats_cfg"`
	NR  []legacyRadioEntry `json:"cell_5G_stats_cfg"`
	APN []legacyAPNConfig  `json:"apn_cfg"`
}

type legacyRadioEntry struct {
	Stat legacyRadioStat `json:"stat"`
}

type legacyRadioStat struct {
	EARFCN  Optional[int64]  `json:"EARFCN"`
	NRARFCN Optional[int64]  `json:"NRARFCN"`
	PCI     Optional[string] `json:"PCI"`
}

type legacyAPNConfig struct {
	APN  Optional[string] `json:"APN"`
	IPv6 Optional[string] `json:"IPv6"`
}

type legacyWifiListing struct {
	WLANs []legacyWLAN `json:"wlan_list"`
}

type legacyWLAN struct {
	OID                      Optional[int64]  `json:"oid"`
	SSID                     Optional[string] `json:"SSID"`
	Enable                   Optional[int64]  `json:"Enable"`
	Type                     Optional[string] `json:"Type"`
	WPAEncryptionModes       Optional[string] `json:"WPAEncryptionModes"`
	BeaconType               Optional[string] `json:"BeaconType"`
	IsGuestSSID              Optional[int64]  `json:"IsGuestSsid"`
	SSIDAdvertisementEnabled Optional[int64]  `json:"SSIDAdvertisementEnabled"`
	PreSharedKey             Optional[string] `json:"PreSharedKey"`
}

type legacyStatistics struct {
	SIM     []legacySIMConfig     `json:"sim_cfg"`
	Network []legacyNetworkConfig `json:"network_cfg"`
}

type legacySIMConfig struct {
	ICCID  Optional[string] `json:"ICCID"`
	IMSI   Optional[string] `json:"IMSI"`
	MSISDN Optional[string] `json:"MSISDN"`
	Status Optional[string] `json:"Status"`
}

type legacyNetworkConfig struct {
	IMEI Optional[string] `json:"IMEI"`
}

type legacySetWifiConfig struct {
	Paralist []legacySetSSID `json:"paralist"`
}

type legacySetSSID struct {
	BeaconType               Optional[string] `json:"BeaconType,omitzero"`
	Enable                   Optional[bool]   `json:"Enable,omitzero"`
	ID                       []string         `json:"id,omitempty"`
	PreSharedKey             Optional[string] `json:"PreSharedKey,omitzero"`
	SSID                     Optional[string] `json:"SSID,omitzero"`
	SSIDAdvertisementEnabled Optional[bool]   `json:"SSIDAdvertisementEnabled,omitzero"`
	WPAEncryptionModes       Optional[string] `json:"WPAEncryptionModes,omitzero"`
}

type legacyServiceAction struct {
	Service string `json:"service"`
}

// Legacy beacon types and their unified encryption versions.
var legacyEncryption = []struct {
	beacon  string
	version string
}{
	{"11i", "WPA2"},
	{"WPAand11i", "WPA/WPA2"},
	{"11iandWPA3", "WPA2/WPA3"},
	{"WPA3", "WPA3"},
}

func legacyToUnifiedEncryption(beacon Optional[string]) Optional[string] {
	b, ok := beacon.Get()
	if !ok {
		return Optional[string]{}
	}
	for _, e := range legacyEncryption {
		if strings.EqualFold(e.beacon, b) {
			return Some(e.version)
		}
	}
	return Some(b)
}

func unifiedToLegacyEncryption(version Optional[string]) Optional[string] {
	v, ok := version.Get()
	if !ok {
		return Optional[string]{}
	}
	for _, e := range legacyEncryption {
		if strings.EqualFold(e.version, v) {
			return Some(e.beacon)
		}
	}
	return Some(v)
}

// attached reports whether the first radio entry carries a real channel. A
// missing channel counts as attached.
func attached(entries []legacyRadioEntry, channel func(legacyRadioStat) Optional[int64]) bool {
	if len(entries) == 0 {
		return true
	}
	v, ok := channel(entries[0].Stat).Get()
	return !ok || v != legacyChannelUnset
}

// isSet maps a 0/1 gateway flag onto a bool.
func isSet(o Optional[int64]) Optional[bool] {
	v, ok := o.Get()
	if !ok {
		return Optional[bool]{}
	}
	return Some(v == 1)
}

func roamingFrom(status Optional[string]) Optional[bool] {
	s, ok := status.Get()
	if !ok {
		return Optional[bool]{}
	}
	return Some(!strings.EqualFold(strings.TrimSpace(s), "home"))
}

func simStatusFrom(status Optional[string]) Optional[bool] {
	s, ok := status.Get()
	if !ok {
		return Optional[bool]{}
	}
	return Some(strings.EqualFold(strings.TrimSpace(s), "valid"))
}

func hasIPv6(apns []legacyAPNConfig) Optional[bool] {
	if len(apns) == 0 {
		return Optional[bool]{}
	}
	return Some(strings.TrimSpace(apns[0].IPv6.Or("")) != "")
}

func first[T any](items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[0], true
}

func bands(band Optional[string]) []string {
	b, ok := band.Get()
	if !ok {
		return nil
	}
	if n := normalizeBand(b); n != "" {
		return []string{n}
	}
	return nil
}

func legacySignal(stat legacyCellStat) CellSignal {
	return CellSignal{
		Bands: bands(stat.Band),
		Bars:  stat.RSRPStrengthIndex,
		RSRP:  stat.RSRP,
		RSRQ:  stat.RSRQ,
		RSSI:  stat.RSSI,
		SINR:  stat.SNR,
	}
}

func legacyMainData(dev *legacyDeviceInfoStatus, cell *legacyCellStatus, radio *legacyRadioStatus) *MainData {
	app, _ := first(dev.DeviceAppStatus)
	cfg, _ := first(dev.DeviceConfig)

	data := &MainData{
		Device: &DeviceData{
			Name:            app.Description,
			Manufacturer:    app.Manufacturer,
			Type:            app.ProductClass,
			HardwareVersion: app.HardwareVersion,
			SoftwareVersion: app.SoftwareVersion,
			IsEnabled:       isSet(cfg.Active),
			IsMeshSupported: Some(true),
			MacID:           cfg.MACAddress,
			Serial:          app.SerialNumber,
		},
		Signal: &SignalData{
			Generic: legacyGeneric(cell, radio),
		},
		Time: &TimeData{
			UpTime: app.UpTime,
		},
	}

	if stat, ok := first(cell.LTE); ok && attached(radio.LTE, lteChannel) {
		data.Signal.FourG = &CellDataLTE{CellSignal: legacySignal(stat), ENBID: stat.ENBID}
	}
	if stat, ok := first(cell.NR); ok && attached(radio.NR, nrChannel) {
		data.Signal.FiveG = &CellData5G{CellSignal: legacySignal(stat), GNBID: stat.ENBID}
	}
	return data
}

func legacyGeneric(cell *legacyCellStatus, radio *legacyRadioStatus) *GenericData {
	apn, _ := first(radio.APN)
	gen, _ := first(cell.Generic)
	return &GenericData{
		APN:     apn.APN,
		HasIPv6: hasIPv6(radio.APN),
		Roaming: roamingFrom(gen.RoamingStatus),
	}
}

func lteChannel(s legacyRadioStat) Optional[int64] { return s.EARFCN }
func nrChannel(s legacyRadioStat) Optional[int64]  { return s.NRARFCN }

func legacyAdvanced(stat legacyCellStat, radio legacyRadioStat, channel Optional[int64]) AdvancedCellInfo {
	return AdvancedCellInfo{
		Bandwidth: stat.Bandwidth,
		CQI:       stat.CQI,
		EARFCN:    formatInt(channel),
		ECGI:      stat.ECGI,
		MCC:       stat.MCC,
		MNC:       stat.MNC,
		PCI:       radio.PCI,
		PLMN:      stat.PLMNName,
	}
}

func legacyCellData(cell *legacyCellStatus, radio *legacyRadioStatus) *CellDataRoot {
	data := &AdvancedCellData{
		Generic: legacyGeneric(cell, radio),
	}
	gen, _ := first(cell.Generic)

	if stat, ok := first(cell.LTE); ok && attached(radio.LTE, lteChannel) {
		entry, _ := first(radio.LTE)
		info := legacyAdvanced(stat, entry.Stat, entry.Stat.EARFCN)
		info.TAC = gen.TAC
		data.FourG = &AdvancedDataLTE{
			AdvancedCellInfo: info,
			Sector:           &CellDataLTE{CellSignal: legacySignal(stat), ENBID: stat.ENBID},
		}
	}
	if stat, ok := first(cell.NR); ok && attached(radio.NR, nrChannel) {
		entry, _ := first(radio.NR)
		info := legacyAdvanced(stat, entry.Stat, entry.Stat.NRARFCN)
		info.TAC = gen.TAC
		data.FiveG = &AdvancedData5G{
			AdvancedCellInfo: info,
			Sector:           &CellData5G{CellSignal: legacySignal(stat), GNBID: stat.ENBID},
		}
	}
	return &CellDataRoot{Cell: data}
}

func legacySimData(stats *legacyStatistics) *SimDataRoot {
	sim, _ := first(stats.SIM)
	network, _ := first(stats.Network)
	return &SimDataRoot{
		Sim: &SimData{
			ICCID:  sim.ICCID,
			IMEI:   network.IMEI,
			IMSI:   sim.IMSI,
			MSISDN: sim.MSISDN,
			Status: simStatusFrom(sim.Status),
		},
	}
}

func legacyClients(dev *legacyDeviceInfoStatus) *ClientDeviceData {
	clients := &ClientsData{}
	for _, cfg := range dev.DeviceConfig {
		client := ClientData{
			Connected: isSet(cfg.Active),
			IPv4:      cfg.IPAddress,
			MAC:       cfg.MACAddress,
			Name:      cfg.HostName,
		}
		switch cfg.InterfaceType.Or("") {
		case "Ethernet":
			clients.Ethernet = append(clients.Ethernet, client)
		case "802.11":
			clients.TwoGig = append(clients.TwoGig, client)
		case "802.11ac", "802.11ax":
			clients.FiveGig = append(clients.FiveGig, client)
		}
	}
	return &ClientDeviceData{Clients: clients}
}

func legacyWifi(listing *legacyWifiListing) *WifiConfig {
	ssids := make([]SSIDConfig, 0, len(listing.WLANs))
	for _, wlan := range listing.WLANs {
		mode := "TKIP"
		if strings.HasPrefix(wlan.WPAEncryptionModes.Or(""), "AES") {
			mode = "AES"
		}
		band := wlan.Type.Or("")
		ssids = append(ssids, SSIDConfig{
			CanEditFrequencyAndGuest: Some(false),
			TwoGigSSID:               Some(band == "2.4G"),
			FiveGigSSID:              Some(band == "5G"),
			EncryptionMode:           Some(mode),
			EncryptionVersion:        legacyToUnifiedEncryption(wlan.BeaconType),
			Guest:                    isSet(wlan.IsGuestSSID),
			IsBroadcastEnabled:       isSet(wlan.SSIDAdvertisementEnabled),
			SSIDName:                 wlan.SSID,
			SSIDID:                   wlan.OID,
			WPAKey:                   wlan.PreSharedKey,
			Enabled:                  isSet(wlan.Enable),
		})
	}
	return &WifiConfig{
		SSIDs:           ssids,
		CanAddAndRemove: Some(false),
	}
}

func legacyWifiRequest(cfg *WifiConfig) legacySetWifiConfig {
	out := legacySetWifiConfig{Paralist: make([]legacySetSSID, 0, len(cfg.SSIDs))}
	for _, ssid := range cfg.SSIDs {
		set := legacySetSSID{
			BeaconType:               unifiedToLegacyEncryption(ssid.EncryptionVersion),
			Enable:                   ssid.Enabled,
			PreSharedKey:             ssid.WPAKey,
			SSID:                     ssid.SSIDName,
			SSIDAdvertisementEnabled: ssid.IsBroadcastEnabled,
		}
		if id, ok := ssid.SSIDID.Get(); ok {
			set.ID = []string{strconv.FormatInt(id, 10)}
		}
		if mode, ok := ssid.EncryptionMode.Get(); ok {
			set.WPAEncryptionModes = Some(mode + "Encryption")
		}
		out.Paralist = append(out.Paralist, set)
	}
	return out
}
