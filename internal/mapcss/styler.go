package mapcss

import (
	"fmt"
	"strconv"
)

// StyleType selects the stylesheet dialect.
type StyleType int

const (
	StyleTypeJosm StyleType = iota
	StyleTypeMapsMe
)

// ParseStyleType maps a config string to a StyleType.
func ParseStyleType(s string) (StyleType, error) {
	switch s {
	case "josm":
		return StyleTypeJosm, nil
	case "mapsme":
		return StyleTypeMapsMe, nil
	default:
		return 0, fmt.Errorf("unknown style type %q", s)
	}
}

func (t StyleType) String() string {
	switch t {
	case StyleTypeJosm:
		return "josm"
	case StyleTypeMapsMe:
		return "mapsme"
	default:
		return "unknown"
	}
}

// Style is the resolved drawing style for one entity at one zoom.
type Style struct {
	Color     string // stroke color, hex
	FillColor string // fill color, hex
	Width     float64
	Text      string // tag key whose value is drawn as a label
	FontSize  float64
	TextColor string
}

// Styler matches parsed rules against entities. It is immutable after
// construction and safe for unsynchronized concurrent use.
type Styler struct {
	rules      []Rule
	styleType  StyleType
	fontSizeMx float64
	canvasFill string
}

// DefaultCanvasColor is used when the stylesheet has no canvas rule.
const DefaultCanvasColor = "#f1eee8"

// NewStyler builds a styler from parsed rules. fontSizeMultiplier
// scales every resolved font size; zero means no scaling.
func NewStyler(rules []Rule, styleType StyleType, fontSizeMultiplier float64) *Styler {
	if fontSizeMultiplier == 0 {
		fontSizeMultiplier = 1
	}

	s := &Styler{
		rules:      rules,
		styleType:  styleType,
		fontSizeMx: fontSizeMultiplier,
		canvasFill: DefaultCanvasColor,
	}

	// The canvas background property name differs between dialects.
	canvasProp := "fill-color"
	if styleType == StyleTypeMapsMe {
		canvasProp = "background-color"
	}
	for _, rule := range rules {
		for _, sel := range rule.Selectors {
			if sel.Element != "canvas" {
				continue
			}
			for _, decl := range rule.Declarations {
				if decl.Property == canvasProp {
					s.canvasFill = decl.Value
				}
			}
		}
	}

	return s
}

// Type returns the stylesheet dialect the styler was built for.
func (s *Styler) Type() StyleType {
	return s.styleType
}

// CanvasColor returns the tile background color.
func (s *Styler) CanvasColor() string {
	return s.canvasFill
}

// StyleFor resolves the style for an entity of the given element kind
// ("node", "way" or "area") with the given tags at the given zoom.
// Rules cascade in stylesheet order; later declarations win. Returns
// false when no rule matches, meaning the entity is not drawn.
func (s *Styler) StyleFor(element string, tags map[string]string, zoom uint32) (Style, bool) {
	style := Style{FontSize: 10}
	matched := false

	for _, rule := range s.rules {
		if !ruleMatches(rule, element, tags, zoom) {
			continue
		}
		matched = true
		for _, decl := range rule.Declarations {
			applyDeclaration(&style, decl)
		}
	}

	if !matched {
		return Style{}, false
	}
	style.FontSize *= s.fontSizeMx
	return style, true
}

func ruleMatches(rule Rule, element string, tags map[string]string, zoom uint32) bool {
	for _, sel := range rule.Selectors {
		if selectorMatches(sel, element, tags, zoom) {
			return true
		}
	}
	return false
}

func selectorMatches(sel Selector, element string, tags map[string]string, zoom uint32) bool {
	if sel.Element == "canvas" {
		return false
	}
	if sel.Element != "*" && sel.Element != element {
		return false
	}
	if zoom < sel.MinZoom {
		return false
	}
	if sel.MaxZoom != 0 && zoom > sel.MaxZoom {
		return false
	}
	for _, test := range sel.Tests {
		value, ok := tags[test.Key]
		if !ok {
			return false
		}
		if test.Value != "" && test.Value != value {
			return false
		}
	}
	return true
}

func applyDeclaration(style *Style, decl Declaration) {
	switch decl.Property {
	case "color":
		style.Color = decl.Value
	case "fill-color":
		style.FillColor = decl.Value
	case "width":
		if w, err := strconv.ParseFloat(decl.Value, 64); err == nil {
			style.Width = w
		}
	case "text":
		style.Text = decl.Value
	case "font-size":
		if fs, err := strconv.ParseFloat(decl.Value, 64); err == nil {
			style.FontSize = fs
		}
	case "text-color":
		style.TextColor = decl.Value
	}
	// Unknown properties are ignored so stylesheets written for richer
	// renderers still load.
}
