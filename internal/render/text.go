package render

import (
	"fmt"
	"strings"

	"github.com/gogpu/gg/text"

	"github.com/listingcast/api/internal/model"
)

// Measurer reports the advance width of a string.
type Measurer interface {
	Advance(s string) float64
}

var _ Measurer = text.Face(nil)

// WrapText breaks s into lines no wider than maxWidth, greedily by word. A
// single word wider than maxWidth occupies its own line.
func WrapText(m Measurer, s string, maxWidth float64) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if m.Advance(candidate) <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}

var propertyLabels = map[model.PropertyType]string{
	model.PropertyApartment: "Apartment",
	model.PropertyHouse:     "House",
	model.PropertyRetail:    "Retail space",
	model.PropertyOffice:    "Office",
	model.PropertyWarehouse: "Warehouse",
	model.PropertyLand:      "Land",
}

// Title is the headline of a listing, e.g. "Apartment for sale".
func Title(l *model.ListingData) string {
	label, ok := propertyLabels[l.PropertyType]
	if !ok {
		label = string(l.PropertyType)
	}
	switch l.Modality {
	case model.ModalityRent:
		return label + " for rent"
	case model.ModalitySale:
		return label + " for sale"
	}
	return label
}

// ClosedLabel is the celebratory badge text of a closed listing.
func ClosedLabel(c *model.ClosedInfo) string {
	label := "SOLD"
	if c.Variant == model.ClosedLeased {
		label = "LEASED"
	}
	if c.MarketDays <= 0 {
		return label
	}
	if c.MarketDays == 1 {
		return label + " in 1 day"
	}
	return fmt.Sprintf("%s in %d days", label, c.MarketDays)
}

// CTA is the call-to-action line, or "" when there is nothing to say.
func CTA(b *model.BrandConfig) string {
	if b == nil {
		return ""
	}
	if s := strings.TrimSpace(b.CTAText); s != "" {
		return s
	}
	if b.Contact == "" {
		return ""
	}
	return "Contact " + b.Contact
}
