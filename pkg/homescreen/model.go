// Package homescreen holds the home screen configuration edited in the
// mobile app editor, and the rules a stored configuration must satisfy.
package homescreen

import (
	"encoding/json"
	"time"
)

// SchemaVersion is written on every stored record.
const SchemaVersion = 1

// TimeLayout renders timestamps the way the editor expects them:
// UTC with millisecond precision. Fixed width, so it sorts as text.
const TimeLayout = "2006-01-02T15:04:05.000Z"

type AspectRatio string

const (
	Portrait  AspectRatio = "portrait"
	Landscape AspectRatio = "landscape"
	Square    AspectRatio = "square"
)

type CarouselImage struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type Carousel struct {
	Images      []CarouselImage `json:"images"`
	AspectRatio AspectRatio     `json:"aspectRatio"`
}

type TextSection struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	TitleColor       string `json:"titleColor"`
	DescriptionColor string `json:"descriptionColor"`
}

type CTA struct {
	Label           string `json:"label"`
	URL             string `json:"url"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
}

// Config is the editable document. Sections are pointers so that a
// missing section can be told apart from an empty one.
type Config struct {
	Carousel    *Carousel    `json:"carousel"`
	TextSection *TextSection `json:"textSection"`
	CTA         *CTA         `json:"cta"`
}

// Configuration is a stored version of a Config.
type Configuration struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schemaVersion"`
	UpdatedAt     Timestamp `json:"updatedAt"`
	Data          Config    `json:"data"`
}

// Timestamp marshals as TimeLayout.
type Timestamp struct{ time.Time }

func (t Timestamp) String() string { return t.UTC().Format(TimeLayout) }

func (t Timestamp) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Timestamp) UnmarshalText(b []byte) error {
	v, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return err
	}
	t.Time = v.UTC()
	return nil
}

// The embedded time.Time's JSON methods would otherwise win over the
// text ones above.

func (t Timestamp) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}

// ParseTimestamp reads a TimeLayout (or any RFC 3339) string.
func ParseTimestamp(s string) (Timestamp, error) {
	var t Timestamp
	err := t.UnmarshalText([]byte(s))
	return t, err
}
