// Package gateway provides the unified data model, vendor adapters and request
// machinery for talking to T-Mobile home internet gateways.
package gateway

// MainData is the gateway summary: device identity, live signal and clock.
type MainData struct {
	Device *DeviceData `json:"device,omitempty"`
	Signal *SignalData `json:"signal,omitempty"`
	Time   *TimeData   `json:"time,omitempty"`
}

// DeviceData describes the gateway hardware.
type DeviceData struct {
	FriendlyName    Optional[string] `json:"friendlyName,omitzero"`
	HardwareVersion Optional[string] `json:"hardwareVersion,omitzero"`
	IsEnabled       Optional[bool]   `json:"isEnabled,omitzero"`
	IsMeshSupported Optional[bool]   `json:"isMeshSupported,omitzero"`
	MacID           Optional[string] `json:"macId,omitzero"`
	Manufacturer    Optional[string] `json:"manufacturer,omitzero"`
	ManufacturerOUI Optional[string] `json:"manufacturerOUI,omitzero"`
	Model           Optional[string] `json:"model,omitzero"`
	Name            Optional[string] `json:"name,omitzero"`
	Role            Optional[string] `json:"role,omitzero"`
	Serial          Optional[string] `json:"serial,omitzero"`
	SoftwareVersion Optional[string] `json:"softwareVersion,omitzero"`
	Type            Optional[string] `json:"type,omitzero"`
	UpdateState     Optional[string] `json:"updateState,omitzero"`
}

// SignalData holds one record per attached radio. A nil record means the
// gateway is not attached on that radio.
type SignalData struct {
	FourG   *CellDataLTE `json:"4g,omitempty"`
	FiveG   *CellData5G  `json:"5g,omitempty"`
	Generic *GenericData `json:"generic,omitempty"`
}

// CellSignal contains the signal quality metrics for one radio.
type CellSignal struct {
	// Bands in use, e.g. "b66" or "n41"
	Bands []string `json:"bands,omitempty"`

	// Bars - signal strength on a 0-5 scale
	Bars Optional[float64] `json:"bars,omitzero"`

	// CID - Cell ID
	CID Optional[int64] `json:"cid,omitzero"`

	// RSRP - Reference Signal Received Power (dBm)
	// Typical range: -140 to -44 dBm
	RSRP Optional[float64] `json:"rsrp,omitzero"`

	// RSRQ - Reference Signal Received Quality (dB)
	// Typical range: -20 to -3 dB
	RSRQ Optional[float64] `json:"rsrq,omitzero"`

	// RSSI - Received Signal Strength Indicator (dBm)
	// Typical range: -120 to -25 dBm
	RSSI Optional[float64] `json:"rssi,omitzero"`

	// SINR - Signal to Interference Noise Ratio (dB)
	// Typical range: -20 to 30 dB
	SINR Optional[float64] `json:"sinr,omitzero"`
}

// CellDataLTE is the 4G signal record.
type CellDataLTE struct {
	CellSignal

	// ENBID - eNodeB ID (cell tower identifier)
	ENBID Optional[int64] `json:"eNBID,omitzero"`
}

// CellData5G is the 5G NR signal record.
type CellData5G struct {
	CellSignal

	// GNBID - gNodeB ID
	GNBID Optional[int64] `json:"gNBID,omitzero"`
}

// GenericData holds radio-independent connection details.
type GenericData struct {
	APN          Optional[string] `json:"apn,omitzero"`
	HasIPv6      Optional[bool]   `json:"hasIPv6,omitzero"`
	Registration Optional[string] `json:"registration,omitzero"`
	Roaming      Optional[bool]   `json:"roaming,omitzero"`
}

// TimeData is the gateway clock.
type TimeData struct {
	DaylightSavings *DaylightSavingsData `json:"daylightSavings,omitempty"`
	LocalTime       Optional[int64]      `json:"localTime,omitzero"`
	LocalTimeZone   Optional[string]     `json:"localTimeZone,omitzero"`
	UpTime          Optional[int64]      `json:"upTime,omitzero"`
}

type DaylightSavingsData struct {
	IsUsed Optional[bool] `json:"isUsed,omitzero"`
}

// CellDataRoot wraps the advanced cell telemetry.
type CellDataRoot struct {
	Cell *AdvancedCellData `json:"cell,omitempty"`
}

type AdvancedCellData struct {
	FourG   *AdvancedDataLTE `json:"4g,omitempty"`
	FiveG   *AdvancedData5G  `json:"5g,omitempty"`
	Generic *GenericData     `json:"generic,omitempty"`
	GPS     *GPSData         `json:"gps,omitempty"`
}

// AdvancedCellInfo contains the cell tower details for one radio.
type AdvancedCellInfo struct {
	// Bandwidth - Channel bandwidth, e.g. "20M"
	Bandwidth Optional[string] `json:"bandwidth,omitzero"`

	// CQI - Channel Quality Indicator
	CQI Optional[int64] `json:"cqi,omitzero"`

	// EARFCN - channel number (NRARFCN on 5G)
	EARFCN Optional[string] `json:"earfcn,omitzero"`

	// ECGI - E-UTRAN Cell Global Identifier
	ECGI Optional[string] `json:"ecgi,omitzero"`

	MCC  Optional[string] `json:"mcc,omitzero"`
	MNC  Optional[string] `json:"mnc,omitzero"`
	PCI  Optional[string] `json:"pci,omitzero"`
	PLMN Optional[string] `json:"plmn,omitzero"`

	Status         Optional[bool] `json:"status,omitzero"`
	SupportedBands []string       `json:"supportedBands,omitempty"`

	// TAC - Tracking Area Code
	TAC Optional[string] `json:"tac,omitzero"`
}

type AdvancedDataLTE struct {
	AdvancedCellInfo
	Sector *CellDataLTE `json:"sector,omitempty"`
}

type AdvancedData5G struct {
	AdvancedCellInfo
	Sector *CellData5G `json:"sector,omitempty"`
}

type GPSData struct {
	Latitude  Optional[float64] `json:"latitude,omitzero"`
	Longitude Optional[float64] `json:"longitude,omitzero"`
}

// SimDataRoot wraps the SIM details.
type SimDataRoot struct {
	Sim *SimData `json:"sim,omitempty"`
}

type SimData struct {
	ICCID  Optional[string] `json:"iccId,omitzero"`
	IMEI   Optional[string] `json:"imei,omitzero"`
	IMSI   Optional[string] `json:"imsi,omitzero"`
	MSISDN Optional[string] `json:"msisdn,omitzero"`
	Status Optional[bool]   `json:"status,omitzero"`
}

// WifiConfig is the complete wireless configuration. Its JSON form is the
// body the unified API accepts for writes.
type WifiConfig struct {
	TwoGig          *BandConfig         `json:"2.4ghz,omitempty"`
	FiveGig         *BandConfig         `json:"5.0ghz,omitempty"`
	SixGig          *BandConfig         `json:"6.0ghz,omitempty"`
	BandSteering    *BandSteeringConfig `json:"bandSteering,omitempty"`
	SSIDs           []SSIDConfig        `json:"ssids,omitempty"`
	CanAddAndRemove Optional[bool]      `json:"canAddAndRemove,omitzero"`
}

type BandConfig struct {
	AirtimeFairness   Optional[bool]   `json:"airtimeFairness,omitzero"`
	Channel           Optional[string] `json:"channel,omitzero"`
	ChannelBandwidth  Optional[string] `json:"channelBandwidth,omitzero"`
	IsMUMIMOEnabled   Optional[bool]   `json:"isMUMIMOEnabled,omitzero"`
	IsRadioEnabled    Optional[bool]   `json:"isRadioEnabled,omitzero"`
	IsWMMEnabled      Optional[bool]   `json:"isWMMEnabled,omitzero"`
	MaxClients        Optional[int64]  `json:"maxClients,omitzero"`
	Mode              Optional[string] `json:"mode,omitzero"`
	TransmissionPower Optional[string] `json:"transmissionPower,omitzero"`
}

type BandSteeringConfig struct {
	IsEnabled Optional[bool] `json:"isEnabled,omitzero"`
}

// SSIDConfig describes one wireless network.
type SSIDConfig struct {
	TwoGigSSID               Optional[bool]   `json:"2.4ghzSsid,omitzero"`
	FiveGigSSID              Optional[bool]   `json:"5.0ghzSsid,omitzero"`
	SixGigSSID               Optional[bool]   `json:"6.0ghzSsid,omitzero"`
	EncryptionMode           Optional[string] `json:"encryptionMode,omitzero"`
	EncryptionVersion        Optional[string] `json:"encryptionVersion,omitzero"`
	Guest                    Optional[bool]   `json:"guest,omitzero"`
	IsBroadcastEnabled       Optional[bool]   `json:"isBroadcastEnabled,omitzero"`
	SSIDName                 Optional[string] `json:"ssidName,omitzero"`
	WPAKey                   Optional[string] `json:"wpaKey,omitzero"`
	SSIDID                   Optional[int64]  `json:"ssidId,omitzero"`
	Enabled                  Optional[bool]   `json:"enabled,omitzero"`
	CanEditFrequencyAndGuest Optional[bool]   `json:"canEditFrequencyAndGuest,omitzero"`
}

// ClientDeviceData lists the devices attached to the gateway.
type ClientDeviceData struct {
	Clients *ClientsData `json:"clients,omitempty"`
}

type ClientsData struct {
	TwoGig   []ClientData `json:"2.4ghz,omitempty"`
	FiveGig  []ClientData `json:"5.0ghz,omitempty"`
	SixGig   []ClientData `json:"6.0ghz,omitempty"`
	Ethernet []ClientData `json:"ethernet,omitempty"`
}

// Count returns the number of clients across all interfaces.
func (c *ClientsData) Count() int {
	if c == nil {
		return 0
	}
	return len(c.TwoGig) + len(c.FiveGig) + len(c.SixGig) + len(c.Ethernet)
}

// ClientData is one attached device. Signal is only reported for wireless
// clients.
type ClientData struct {
	Connected Optional[bool]   `json:"connected,omitzero"`
	IPv4      Optional[string] `json:"ipv4,omitzero"`
	IPv6      []string         `json:"ipv6,omitempty"`
	MAC       Optional[string] `json:"mac,omitzero"`
	Name      Optional[string] `json:"name,omitzero"`
	Signal    Optional[int64]  `json:"signal,omitzero"`
}

// LoginResultData is the unified API login response.
type LoginResultData struct {
	Auth   *AuthData   `json:"auth,omitempty"`
	Result *ResultData `json:"result,omitempty"`
}

type AuthData struct {
	Expiration       Optional[int64]  `json:"expiration,omitzero"`
	RefreshCountLeft Optional[int64]  `json:"refreshCountLeft,omitzero"`
	RefreshCountMax  Optional[int64]  `json:"refreshCountMax,omitzero"`
	Token            Optional[string] `json:"token,omitzero"`
}

type ResultData struct {
	Code    Optional[int64]  `json:"code,omitzero"`
	Message Optional[string] `json:"message,omitzero"`
}

// State aggregates everything read from the gateway in one refresh.
type State struct {
	Main    *MainData         `json:"main,omitempty"`
	Cell    *CellDataRoot     `json:"cell,omitempty"`
	Sim     *SimDataRoot      `json:"sim,omitempty"`
	Wifi    *WifiConfig       `json:"wifi,omitempty"`
	Clients *ClientDeviceData `json:"clients,omitempty"`
}

// Primary returns the radio a client should report as the connection: 5G
// when attached, otherwise LTE. The returned name is "5g", "4g" or "".
func (s *SignalData) Primary() (string, *CellSignal) {
	switch {
	case s == nil:
		return "", nil
	case s.FiveG != nil:
		return "5g", &s.FiveG.CellSignal
	case s.FourG != nil:
		return "4g", &s.FourG.CellSignal
	default:
		return "", nil
	}
}
