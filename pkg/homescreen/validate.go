package homescreen

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a rule violation; its message is shown to the caller.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var validate = validator.New()

// Field rules in validator tag syntax.
const (
	urlRule    = "url"
	colorRule  = "hexcolor,len=7"
	aspectRule = "oneof=portrait landscape square"
)

func satisfies(v any, rule string) bool {
	return validate.Var(v, rule) == nil
}

// str is a string field as sent. set is true only for a JSON string, so an
// absent field, null, or a value of another type all read as missing.
type str struct {
	v   string
	set bool
}

func (s *str) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || b[0] != '"' {
		return nil
	}
	s.set = true
	return json.Unmarshal(b, &s.v)
}

func given(v string) str { return str{v: v, set: true} }

// document is a Config as sent. A nil section or image was absent or not
// a JSON object.
type document struct {
	Carousel    *carouselDoc
	TextSection *textDoc
	CTA         *ctaDoc
}

type carouselDoc struct {
	Images      []*imageDoc
	AspectRatio str
}

type imageDoc struct {
	URL str `json:"url"`
	Alt str `json:"alt"`
}

type textDoc struct {
	Title            str `json:"title"`
	Description      str `json:"description"`
	TitleColor       str `json:"titleColor"`
	DescriptionColor str `json:"descriptionColor"`
}

type ctaDoc struct {
	Label           str `json:"label"`
	URL             str `json:"url"`
	BackgroundColor str `json:"backgroundColor"`
	TextColor       str `json:"textColor"`
}

// Decode parses and validates raw. Every rejection is a *ValidationError
// naming the first rule broken. Fields of the wrong JSON type count as
// missing. Unknown fields are dropped.
func Decode(raw json.RawMessage) (Config, error) {
	if !isObject(raw) {
		return Config{}, invalid("Configuration must be an object")
	}
	var top struct {
		Carousel    json.RawMessage `json:"carousel"`
		TextSection json.RawMessage `json:"textSection"`
		CTA         json.RawMessage `json:"cta"`
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		return Config{}, invalid("Configuration is not valid JSON")
	}
	var doc document
	if isObject(top.Carousel) {
		var c struct {
			Images      json.RawMessage `json:"images"`
			AspectRatio str             `json:"aspectRatio"`
		}
		_ = json.Unmarshal(top.Carousel, &c)
		doc.Carousel = &carouselDoc{AspectRatio: c.AspectRatio}
		var images []json.RawMessage
		if isArray(c.Images) {
			_ = json.Unmarshal(c.Images, &images)
		}
		for _, item := range images {
			var img *imageDoc
			if isObject(item) {
				img = new(imageDoc)
				_ = json.Unmarshal(item, img)
			}
			doc.Carousel.Images = append(doc.Carousel.Images, img)
		}
	}
	if isObject(top.TextSection) {
		doc.TextSection = new(textDoc)
		_ = json.Unmarshal(top.TextSection, doc.TextSection)
	}
	if isObject(top.CTA) {
		doc.CTA = new(ctaDoc)
		_ = json.Unmarshal(top.CTA, doc.CTA)
	}
	if err := doc.validate(); err != nil {
		return Config{}, err
	}
	return doc.config(), nil
}

// Validate applies the same rules as Decode to an already typed Config.
func (c *Config) Validate() error {
	return fromConfig(c).validate()
}

func isObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func (d *document) validate() error {
	if err := d.validateCarousel(); err != nil {
		return err
	}
	if err := d.validateTextSection(); err != nil {
		return err
	}
	return d.validateCTA()
}

func (d *document) validateCarousel() error {
	c := d.Carousel
	if c == nil {
		return invalid("Carousel section is required")
	}
	if len(c.Images) == 0 {
		return invalid("At least one carousel image is required")
	}
	for i, img := range c.Images {
		if img == nil {
			return invalid("Image at index %d must be an object", i)
		}
		if !img.URL.set || !img.Alt.set {
			return invalid("Image at index %d must have url and alt strings", i)
		}
		if !satisfies(img.URL.v, urlRule) {
			return invalid("Image at index %d has invalid URL format", i)
		}
	}
	if !satisfies(c.AspectRatio.v, aspectRule) {
		return invalid("Aspect ratio must be portrait, landscape, or square")
	}
	return nil
}

func (d *document) validateTextSection() error {
	t := d.TextSection
	if t == nil {
		return invalid("Text section is required")
	}
	if !t.Title.set || !t.Description.set {
		return invalid("Text section must have title and description strings")
	}
	if !t.TitleColor.set || !t.DescriptionColor.set {
		return invalid("Text section must have titleColor and descriptionColor strings")
	}
	if !satisfies(t.TitleColor.v, colorRule) {
		return invalid("Title color must be a valid hex color (e.g., #000000)")
	}
	if !satisfies(t.DescriptionColor.v, colorRule) {
		return invalid("Description color must be a valid hex color (e.g., #666666)")
	}
	return nil
}

func (d *document) validateCTA() error {
	cta := d.CTA
	if cta == nil {
		return invalid("CTA section is required")
	}
	if !cta.Label.set || !cta.URL.set {
		return invalid("CTA must have label and url strings")
	}
	if !cta.BackgroundColor.set || !cta.TextColor.set {
		return invalid("CTA must have backgroundColor and textColor strings")
	}
	if !satisfies(cta.URL.v, urlRule) {
		return invalid("CTA URL has invalid format")
	}
	if !satisfies(cta.BackgroundColor.v, colorRule) {
		return invalid("CTA background color must be a valid hex color")
	}
	if !satisfies(cta.TextColor.v, colorRule) {
		return invalid("CTA text color must be a valid hex color")
	}
	return nil
}

// config is only called on a validated document.
func (d *document) config() Config {
	c := d.Carousel
	out := Config{
		Carousel: &Carousel{
			Images:      make([]CarouselImage, len(c.Images)),
			AspectRatio: AspectRatio(c.AspectRatio.v),
		},
		TextSection: &TextSection{
			Title:            d.TextSection.Title.v,
			Description:      d.TextSection.Description.v,
			TitleColor:       d.TextSection.TitleColor.v,
			DescriptionColor: d.TextSection.DescriptionColor.v,
		},
		CTA: &CTA{
			Label:           d.CTA.Label.v,
			URL:             d.CTA.URL.v,
			BackgroundColor: d.CTA.BackgroundColor.v,
			TextColor:       d.CTA.TextColor.v,
		},
	}
	for i, img := range c.Images {
		out.Carousel.Images[i] = CarouselImage{URL: img.URL.v, Alt: img.Alt.v}
	}
	return out
}

// fromConfig treats every string field of a typed Config as present.
func fromConfig(c *Config) *document {
	d := &document{}
	if cr := c.Carousel; cr != nil {
		d.Carousel = &carouselDoc{AspectRatio: given(string(cr.AspectRatio))}
		for _, img := range cr.Images {
			d.Carousel.Images = append(d.Carousel.Images, &imageDoc{URL: given(img.URL), Alt: given(img.Alt)})
		}
	}
	if t := c.TextSection; t != nil {
		d.TextSection = &textDoc{
			Title:            given(t.Title),
			Description:      given(t.Description),
			TitleColor:       given(t.TitleColor),
			DescriptionColor: given(t.DescriptionColor),
		}
	}
	if cta := c.CTA; cta != nil {
		d.CTA = &ctaDoc{
			Label:           given(cta.Label),
			URL:             given(cta.URL),
			BackgroundColor: given(cta.BackgroundColor),
			TextColor:       given(cta.TextColor),
		}
	}
	return d
}
