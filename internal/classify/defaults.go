package classify

// Baseline rules used by New and by a rules reset. These are product
// defaults and can be replaced wholesale through preferences.
func defaultConfig() RulesConfig {
	return RulesConfig{
		NoFlex: &CategoryConfig{
			Keywords: []string{
				"obligatoire", "requis", "required", "mandatory",
				"direction", "validation", "comité", "board", "réunion importante",
			},
			Patterns: []string{
				`/réunion\s+(de\s+)?direction/i`,
				`/comité\s+(de\s+)?direction/i`,
				`/validation\s+(obligatoire)?/i`,
			},
		},
		Flex: &CategoryConfig{
			Keywords: []string{
				"optionnel", "optional", "info", "information",
				"stand-up", "standup", "point", "brief",
			},
			Patterns: []string{
				`/stand[- ]?up/i`,
				`/point\s+(d'|de\s+)?info/i`,
				`/réunion\s+optionnelle/i`,
			},
		},
		Deplacement: &CategoryConfig{
			Keywords: []string{
				"déplacement", "formation", "training", "external", "externe",
				"client", "customer", "on-site", "sur site",
			},
			Patterns: []string{
				`/formation/i`,
				`/training/i`,
				`/déplacement/i`,
				`/chez\s+(le\s+)?client/i`,
				`/on[- ]?site/i`,
			},
		},
		Priority:     []string{string(NoFlex), string(Deplacement), string(Flex)},
		DefaultColor: "gray",
	}
}

// DefaultConfig returns a fresh copy of the baseline rule configuration.
func DefaultConfig() RulesConfig {
	return defaultConfig()
}
