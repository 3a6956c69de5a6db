package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"meetlens/internal/model"
)

type compiledCategory struct {
	rules   CategoryRules
	lowered []string
	regexps []*regexp.Regexp
}

func (c *compiledCategory) matches(text string) bool {
	for _, kw := range c.lowered {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, re := range c.regexps {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Engine assigns a color category to meetings from keyword and regex rules.
// It is safe for concurrent use: Classify takes a read lock, updates take
// the write lock.
type Engine struct {
	mu           sync.RWMutex
	categories   map[Category]*compiledCategory
	priority     []Category
	defaultColor model.Color
}

// New returns an engine loaded with the baseline rules.
func New() *Engine {
	e, err := FromConfig(defaultConfig())
	if err != nil {
		panic(fmt.Sprintf("classify: baseline rules are invalid: %v", err))
	}
	return e
}

// FromConfig builds an engine from a serialized configuration. Omitted
// categories match nothing; an omitted priority or default color falls back
// to the baseline.
func FromConfig(cfg RulesConfig) (*Engine, error) {
	e := &Engine{
		categories:   make(map[Category]*compiledCategory, len(Categories)),
		priority:     append([]Category{}, Categories...),
		defaultColor: model.ColorDefault,
	}
	for _, cat := range Categories {
		cc := cfg.category(cat)
		if cc == nil {
			cc = &CategoryConfig{}
		}
		compiled, err := compileCategory(cat, *cc)
		if err != nil {
			return nil, err
		}
		e.categories[cat] = compiled
	}
	if len(cfg.Priority) > 0 {
		p, err := parsePriority(cfg.Priority)
		if err != nil {
			return nil, err
		}
		e.priority = p
	}
	if cfg.DefaultColor != "" {
		c, err := parseDefaultColor(cfg.DefaultColor)
		if err != nil {
			return nil, err
		}
		e.defaultColor = c
	}
	return e, nil
}

// ParseRules decodes a JSON rule configuration. Unknown keys are rejected.
func ParseRules(data []byte) (*Engine, error) {
	var cfg RulesConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ConfigurationError{Field: "rules", Err: err}
	}
	return FromConfig(cfg)
}

func compileCategory(cat Category, cc CategoryConfig) (*compiledCategory, error) {
	out := &compiledCategory{}
	for _, kw := range cc.Keywords {
		// Padding is kept: " point " only matches the standalone word.
		if strings.TrimSpace(kw) == "" {
			continue
		}
		out.rules.Keywords = append(out.rules.Keywords, kw)
		out.lowered = append(out.lowered, strings.ToLower(kw))
	}
	for i, raw := range cc.Patterns {
		p, err := ParsePattern(raw)
		if err != nil {
			return nil, &ConfigurationError{
				Field: fmt.Sprintf("%s.patterns[%d]", cat, i),
				Err:   err,
			}
		}
		re, _ := p.Compile()
		out.rules.Patterns = append(out.rules.Patterns, p)
		out.regexps = append(out.regexps, re)
	}
	return out, nil
}

// Classify returns m tagged with the first category in priority order that
// matches its subject, body or location.
func (e *Engine) Classify(m model.Meeting) model.ClassifiedMeeting {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.classifyLocked(m)
}

// ClassifyAll classifies a batch under a single rules snapshot, preserving
// order.
func (e *Engine) ClassifyAll(meetings []model.Meeting) []model.ClassifiedMeeting {
	out := make([]model.ClassifiedMeeting, len(meetings))
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i, m := range meetings {
		out[i] = e.classifyLocked(m)
	}
	return out
}

func (e *Engine) classifyLocked(m model.Meeting) model.ClassifiedMeeting {
	text := searchText(m)
	for _, cat := range e.priority {
		if c, ok := e.categories[cat]; ok && c.matches(text) {
			color, reason := cat.Outcome()
			return model.ClassifiedMeeting{Meeting: m, Color: color, ClassificationReason: reason}
		}
	}
	return model.ClassifiedMeeting{Meeting: m, Color: e.defaultColor, ClassificationReason: ReasonUnclassified}
}

func searchText(m model.Meeting) string {
	return strings.ToLower(m.Subject + " " + m.Body + " " + m.Location)
}

// Update merges a partial configuration. Every pattern is validated before
// anything is applied, so a failed update leaves the engine unchanged.
func (e *Engine) Update(u RulesUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[Category]*compiledCategory, len(e.categories))
	for cat, current := range e.categories {
		next[cat] = current
	}
	for _, cat := range Categories {
		cu := u.category(cat)
		if cu == nil {
			continue
		}
		current := e.categories[cat]
		merged := CategoryConfig{Keywords: current.rules.Keywords, Patterns: cu.Patterns}
		if cu.Keywords != nil {
			merged.Keywords = cu.Keywords
		}
		compiled, err := compileCategory(cat, merged)
		if err != nil {
			return err
		}
		if cu.Patterns == nil {
			compiled.rules.Patterns = current.rules.Patterns
			compiled.regexps = current.regexps
		}
		next[cat] = compiled
	}

	priority := e.priority
	if len(u.Priority) > 0 {
		p, err := parsePriority(u.Priority)
		if err != nil {
			return err
		}
		priority = p
	}
	defaultColor := e.defaultColor
	if u.DefaultColor != "" {
		c, err := parseDefaultColor(u.DefaultColor)
		if err != nil {
			return err
		}
		defaultColor = c
	}

	e.categories = next
	e.priority = priority
	e.defaultColor = defaultColor
	return nil
}

// Replace swaps in a complete configuration, with FromConfig semantics:
// omitted categories match nothing. On error the engine is unchanged.
func (e *Engine) Replace(cfg RulesConfig) error {
	fresh, err := FromConfig(cfg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.categories = fresh.categories
	e.priority = fresh.priority
	e.defaultColor = fresh.defaultColor
	return nil
}

// Reset restores the baseline rules.
func (e *Engine) Reset() {
	fresh := New()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.categories = fresh.categories
	e.priority = fresh.priority
	e.defaultColor = fresh.defaultColor
}

// Rules returns an independent copy of the current configuration.
func (e *Engine) Rules() Rules {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Rules{
		NoFlex:       e.categories[NoFlex].rules.clone(),
		Flex:         e.categories[Flex].rules.clone(),
		Deplacement:  e.categories[Deplacement].rules.clone(),
		Priority:     append([]Category{}, e.priority...),
		DefaultColor: e.defaultColor,
	}
}

// Config serializes the current rules so they can be persisted and fed
// back to FromConfig.
func (e *Engine) Config() RulesConfig {
	r := e.Rules()
	toConfig := func(cr CategoryRules) *CategoryConfig {
		cc := &CategoryConfig{Keywords: cr.Keywords, Patterns: make([]string, 0, len(cr.Patterns))}
		for _, p := range cr.Patterns {
			cc.Patterns = append(cc.Patterns, p.String())
		}
		return cc
	}
	priority := make([]string, 0, len(r.Priority))
	for _, c := range r.Priority {
		priority = append(priority, string(c))
	}
	return RulesConfig{
		NoFlex:       toConfig(r.NoFlex),
		Flex:         toConfig(r.Flex),
		Deplacement:  toConfig(r.Deplacement),
		Priority:     priority,
		DefaultColor: r.DefaultColor.String(),
	}
}
