package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Upload and media limits mirrored from the client
const (
	MaxImageBytes        = 5 * 1024 * 1024
	MaxVideoBytes        = 100 * 1024 * 1024
	MaxClipSeconds       = 60
	MaxTourSeconds       = 100
	MaxTourClips         = 10
	MinCarouselPhotos    = 3
	MaxCarouselPhotos    = 10
	MinTourClips         = 2
	StillSecondsPerFrame = 3
)

// Price holds a listing price as written by the agent. It accepts either a
// JSON number or a JSON string.
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("price must be a number or string: %w", err)
	}
	*p = Price(n.String())
	return nil
}

// VideoClip is a source clip for video tours
type VideoClip struct {
	URL      string  `json:"url" validate:"required,url"`
	Duration float64 `json:"duration" validate:"required,gt=0,lte=60"`
}

// ClosedInfo marks a leased/sold celebratory variant
type ClosedInfo struct {
	Variant     ClosedVariant `json:"variant" validate:"required,oneof=leased sold"`
	MarketDays  int           `json:"marketDays" validate:"omitempty,min=0"`
	ClosedPrice Price         `json:"closedPrice"`
}

// ListingData is the property being advertised
type ListingData struct {
	PropertyType PropertyType `json:"propertyType" validate:"required,oneof=apartment house retail office warehouse land"`
	Modality     Modality     `json:"modality" validate:"required,oneof=rent sale"`
	RentPrice    Price        `json:"rentPrice"`
	SalePrice    Price        `json:"salePrice"`
	Location     string       `json:"location" validate:"max=200"`
	Rooms        int          `json:"rooms" validate:"min=0,max=99"`
	Baths        int          `json:"baths" validate:"min=0,max=99"`
	Parking      int          `json:"parking" validate:"min=0,max=99"`
	Area         float64      `json:"area" validate:"min=0"`
	Photos       []string     `json:"photos" validate:"max=10,dive,url"`
	Subtitles    []string     `json:"subtitles" validate:"omitempty,max=10,dive,max=240"`
	Videos       []VideoClip  `json:"videos" validate:"omitempty,max=10,dive"`
	Closed       *ClosedInfo  `json:"closed" validate:"omitempty"`
}

// ActivePrice returns the price matching the modality.
func (l *ListingData) ActivePrice() Price {
	if l.Modality == ModalityRent {
		return l.RentPrice
	}
	return l.SalePrice
}

// Subtitle returns the subtitle for a photo index, or "".
func (l *ListingData) Subtitle(i int) string {
	if i < 0 || i >= len(l.Subtitles) {
		return ""
	}
	return l.Subtitles[i]
}

// TourSeconds sums the declared clip durations.
func (l *ListingData) TourSeconds() float64 {
	var total float64
	for _, v := range l.Videos {
		total += v.Duration
	}
	return total
}

// CheckPrice verifies that exactly the price of the modality is set.
func (l *ListingData) CheckPrice() error {
	switch l.Modality {
	case ModalityRent:
		if l.SalePrice != "" {
			return errors.New("sale price set on a rental listing")
		}
	case ModalitySale:
		if l.RentPrice != "" {
			return errors.New("rent price set on a sale listing")
		}
	default:
		return fmt.Errorf("unknown modality %q", l.Modality)
	}
	return nil
}

// CheckMedia verifies the photo/clip bounds for a content type.
func (l *ListingData) CheckMedia(content ContentType) error {
	switch content {
	case ContentSingle:
		if len(l.Photos) != 1 {
			return fmt.Errorf("single image requires exactly 1 photo, got %d", len(l.Photos))
		}
	case ContentCarousel:
		if len(l.Photos) < MinCarouselPhotos || len(l.Photos) > MaxCarouselPhotos {
			return fmt.Errorf("carousel requires %d-%d photos, got %d", MinCarouselPhotos, MaxCarouselPhotos, len(l.Photos))
		}
	case ContentVideo:
		if len(l.Videos) < MinTourClips || len(l.Videos) > MaxTourClips {
			return fmt.Errorf("video tour requires %d-%d clips, got %d", MinTourClips, MaxTourClips, len(l.Videos))
		}
		if l.TourSeconds() > MaxTourSeconds {
			return fmt.Errorf("video tour exceeds %ds total", MaxTourSeconds)
		}
	default:
		return fmt.Errorf("unknown content type %q", content)
	}
	return nil
}

// BrandConfig is the agency branding, read-only to the engine
type BrandConfig struct {
	Name           string `json:"name" validate:"required,max=80"`
	PrimaryColor   string `json:"primaryColor" validate:"required,hexcolor"`
	SecondaryColor string `json:"secondaryColor" validate:"omitempty,hexcolor"`
	LogoURL        string `json:"logoUrl" validate:"omitempty,url"`
	Contact        string `json:"contact" validate:"max=80"`
	City           string `json:"city" validate:"max=80"`
	CTAText        string `json:"ctaText" validate:"max=80"`
}

// CanvasWidth is shared by every canvas format.
const CanvasWidth = 1080

// Canvas is the fixed pixel surface size
type Canvas struct {
	Width  int
	Height int
}

// CanvasFor maps a canvas format to its pixel size.
func CanvasFor(f CanvasFormat) (Canvas, error) {
	switch f {
	case CanvasVertical:
		return Canvas{Width: CanvasWidth, Height: 1920}, nil
	case CanvasSquare:
		return Canvas{Width: CanvasWidth, Height: CanvasWidth}, nil
	}
	return Canvas{}, fmt.Errorf("unknown canvas format %q", f)
}

// IsSquare reports whether the canvas is 1:1.
func (c Canvas) IsSquare() bool {
	return c.Width == c.Height
}
