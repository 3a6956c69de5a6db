package model

import "fmt"

// Color is the category assigned to a meeting. The set is closed: any value
// outside the four constants is treated as ColorDefault by consumers.
type Color uint8

const (
	ColorDefault Color = iota
	ColorRed           // no flex
	ColorGreen         // flex
	ColorBlue          // travel / training
)

// Colors lists every color in display order.
var Colors = []Color{ColorRed, ColorGreen, ColorBlue, ColorDefault}

func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorGreen:
		return "green"
	case ColorBlue:
		return "blue"
	default:
		return "gray"
	}
}

// ParseColor accepts the text forms produced by String.
func ParseColor(s string) (Color, error) {
	switch s {
	case "red":
		return ColorRed, nil
	case "green":
		return ColorGreen, nil
	case "blue":
		return ColorBlue, nil
	case "gray", "default":
		return ColorDefault, nil
	default:
		return ColorDefault, fmt.Errorf("unknown color %q", s)
	}
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
