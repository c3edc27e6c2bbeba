package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const cellMapperBaseURL = "https://www.cellmapper.net/map"

// CellMapperLink points at a serving cell on cellmapper.net.
type CellMapperLink struct {
	Radio    string `json:"radio"`
	MapURL   string `json:"mapUrl,omitempty"`
	TowerURL string `json:"towerUrl,omitempty"`
}

func networkType(cell *CellSignal) string {
	if cell != nil {
		for _, b := range cell.Bands {
			if strings.HasPrefix(b, "n") {
				return "NR"
			}
		}
	}
	return "LTE"
}

func atoi(o Optional[string]) (int, bool) {
	s, ok := o.Get()
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	return v, err == nil
}

// CellMapperURL builds the map link for a serving cell. It needs numeric MCC,
// MNC and TAC; PCI and EARFCN are added when they parse.
func CellMapperURL(cell *CellSignal, info *AdvancedCellInfo, lat, lon Optional[float64]) (string, bool) {
	if info == nil {
		return "", false
	}
	mcc, ok := atoi(info.MCC)
	if !ok {
		return "", false
	}
	mnc, ok := atoi(info.MNC)
	if !ok {
		return "", false
	}
	tac, ok := atoi(info.TAC)
	if !ok {
		return "", false
	}

	var b strings.Builder
	b.WriteString(cellMapperBaseURL)
	fmt.Fprintf(&b, "?MCC=%d&MNC=%d&type=%s", mcc, mnc, networkType(cell))
	fmt.Fprintf(&b, "&latitude=%s&longitude=%s",
		strconv.FormatFloat(lat.Or(0), 'f', -1, 64),
		strconv.FormatFloat(lon.Or(0), 'f', -1, 64),
	)
	b.WriteString("&zoom=13&showTowers=true&showIcons=true&showData=true&showNeighbors=false&showLines=true&showLabels=true")
	if pci, ok := atoi(info.PCI); ok {
		fmt.Fprintf(&b, "&PCI=%d", pci)
	}
	if earfcn, ok := atoi(info.EARFCN); ok {
		fmt.Fprintf(&b, "&EARFCN=%d", earfcn)
	}
	fmt.Fprintf(&b, "&TAC=%d", tac)
	return b.String(), true
}

// TowerSearchURL builds the tower search link for a serving cell's ECGI.
func TowerSearchURL(info *AdvancedCellInfo, cell *CellSignal) (string, bool) {
	if info == nil {
		return "", false
	}
	mcc, ok := atoi(info.MCC)
	if !ok {
		return "", false
	}
	mnc, ok := atoi(info.MNC)
	if !ok {
		return "", false
	}
	ecgi, ok := info.ECGI.Get()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("https://www.cellmapper.net/%s/%d/%d/search?cell=%s",
		networkType(cell), mcc, mnc, url.QueryEscape(ecgi)), true
}

// CellMapperLinks returns the links for every attached radio, 5G first.
func CellMapperLinks(root *CellDataRoot) []CellMapperLink {
	if root == nil || root.Cell == nil {
		return nil
	}
	var lat, lon Optional[float64]
	if gps := root.Cell.GPS; gps != nil {
		lat, lon = gps.Latitude, gps.Longitude
	}

	var links []CellMapperLink
	add := func(radio string, cell *CellSignal, info *AdvancedCellInfo) {
		link := CellMapperLink{Radio: radio}
		link.MapURL, _ = CellMapperURL(cell, info, lat, lon)
		link.TowerURL, _ = TowerSearchURL(info, cell)
		if link.MapURL != "" || link.TowerURL != "" {
			links = append(links, link)
		}
	}
	if nr := root.Cell.FiveG; nr != nil {
		var cell *CellSignal
		if nr.Sector != nil {
			cell = &nr.Sector.CellSignal
		}
		add("5g", cell, &nr.AdvancedCellInfo)
	}
	if lte := root.Cell.FourG; lte != nil {
		var cell *CellSignal
		if lte.Sector != nil {
			cell = &lte.Sector.CellSignal
		}
		add("4g", cell, &lte.AdvancedCellInfo)
	}
	return links
}
