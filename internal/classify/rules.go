package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"meetlens/internal/model"
)

// Category names a rule set. The category→color mapping is fixed.
type Category string

const (
	NoFlex      Category = "noFlex"
	Flex        Category = "flex"
	Deplacement Category = "deplacement"
)

// Categories lists every known category in default priority order.
var Categories = []Category{NoFlex, Deplacement, Flex}

const (
	ReasonNoFlex       = "No Flex - Réunion obligatoire"
	ReasonDeplacement  = "Déplacement/Formation"
	ReasonFlex         = "Flex - Réunion optionnelle"
	ReasonUnclassified = "Non classifié"
)

// Outcome returns the color and reason assigned when c matches.
func (c Category) Outcome() (model.Color, string) {
	switch c {
	case NoFlex:
		return model.ColorRed, ReasonNoFlex
	case Deplacement:
		return model.ColorBlue, ReasonDeplacement
	case Flex:
		return model.ColorGreen, ReasonFlex
	default:
		return model.ColorDefault, ReasonUnclassified
	}
}

func parseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Pattern is a validated regular expression in its serialized form.
// Flags use the gimsuy alphabet.
type Pattern struct {
	Source string `json:"source"`
	Flags  string `json:"flags"`
}

var delimited = regexp.MustCompile(`^/(.*)/([a-z]*)$`)

// ParsePattern accepts "/source/flags" or a bare source, which is treated as
// case-insensitive.
func ParsePattern(s string) (Pattern, error) {
	p := Pattern{Source: s, Flags: "i"}
	if m := delimited.FindStringSubmatch(s); m != nil {
		p = Pattern{Source: m[1], Flags: m[2]}
	}
	if _, err := p.Compile(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

func (p Pattern) String() string {
	return "/" + p.Source + "/" + p.Flags
}

// Compile translates the pattern into an RE2 expression.
// i, m and s map to inline flags, y anchors at the start of the text,
// g and u have no effect on a single match test.
func (p Pattern) Compile() (*regexp.Regexp, error) {
	var inline strings.Builder
	sticky := false
	seen := make(map[rune]bool, len(p.Flags))
	for _, f := range p.Flags {
		if seen[f] {
			return nil, fmt.Errorf("duplicate flag %q in %s", f, p)
		}
		seen[f] = true
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'y':
			sticky = true
		case 'g', 'u':
		default:
			return nil, fmt.Errorf("unsupported flag %q in %s", f, p)
		}
	}

	expr := p.Source
	if sticky {
		expr = `\A(?:` + expr + `)`
	}
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", p, err)
	}
	return re, nil
}

// CategoryRules is the decoded rule set of one category.
type CategoryRules struct {
	Keywords []string  `json:"keywords"`
	Patterns []Pattern `json:"patterns"`
}

func (r CategoryRules) clone() CategoryRules {
	return CategoryRules{
		Keywords: append([]string{}, r.Keywords...),
		Patterns: append([]Pattern{}, r.Patterns...),
	}
}

// Rules is a snapshot of an engine's configuration.
type Rules struct {
	NoFlex       CategoryRules `json:"noFlex"`
	Flex         CategoryRules `json:"flex"`
	Deplacement  CategoryRules `json:"deplacement"`
	Priority     []Category    `json:"priority"`
	DefaultColor model.Color   `json:"defaultColor"`
}

// Category returns the rules for c.
func (r Rules) Category(c Category) CategoryRules {
	switch c {
	case NoFlex:
		return r.NoFlex
	case Flex:
		return r.Flex
	case Deplacement:
		return r.Deplacement
	}
	return CategoryRules{}
}

// CategoryConfig is the serialized form of one category. Patterns are
// "/source/flags" strings or bare sources.
type CategoryConfig struct {
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`
	Patterns []string `json:"patterns" yaml:"patterns" mapstructure:"patterns"`
}

// RulesConfig is the serialized rule configuration stored in preferences.
type RulesConfig struct {
	NoFlex       *CategoryConfig `json:"noFlex,omitempty" yaml:"noFlex,omitempty" mapstructure:"noFlex"`
	Flex         *CategoryConfig `json:"flex,omitempty" yaml:"flex,omitempty" mapstructure:"flex"`
	Deplacement  *CategoryConfig `json:"deplacement,omitempty" yaml:"deplacement,omitempty" mapstructure:"deplacement"`
	Priority     []string        `json:"priority,omitempty" yaml:"priority,omitempty" mapstructure:"priority"`
	DefaultColor string          `json:"defaultColor,omitempty" yaml:"defaultColor,omitempty" mapstructure:"defaultColor"`
}

func (c RulesConfig) category(cat Category) *CategoryConfig {
	switch cat {
	case NoFlex:
		return c.NoFlex
	case Flex:
		return c.Flex
	case Deplacement:
		return c.Deplacement
	}
	return nil
}

// RulesUpdate is a partial RulesConfig. A nil category, a nil keyword or
// pattern slice, an empty priority and an empty default color all leave the
// current value in place. A non-nil empty slice clears the list.
type RulesUpdate = RulesConfig

// ConfigurationError reports a malformed rule configuration.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("classify: invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func parsePriority(names []string) ([]Category, error) {
	out := make([]Category, 0, len(names))
	seen := make(map[Category]bool, len(names))
	for _, name := range names {
		c, ok := parseCategory(name)
		if !ok {
			return nil, &ConfigurationError{Field: "priority", Err: fmt.Errorf("unknown category %q", name)}
		}
		if seen[c] {
			return nil, &ConfigurationError{Field: "priority", Err: fmt.Errorf("duplicate category %q", name)}
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func parseDefaultColor(s string) (model.Color, error) {
	c, err := model.ParseColor(s)
	if err != nil {
		return model.ColorDefault, &ConfigurationError{Field: "defaultColor", Err: err}
	}
	return c, nil
}
