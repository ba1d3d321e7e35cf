package errors

// Template defines a registered diagnostic.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

var registry = map[string]Template{
	// Runtime (AT100-AT199)
	"AT101": {
		Category: CategoryRuntime,
		Message:  "Dependency cycle",
		Detail:   "An atom read itself, directly or through other atoms, while it was being evaluated.",
	},
	"AT102": {
		Category: CategoryRuntime,
		Message:  "Atom is not writable",
		Detail:   "Only primitive atoms and atoms with a write function accept writes.",
	},
	"AT103": {
		Category: CategoryRuntime,
		Message:  "Atom is still pending",
		Detail:   "The atom's value depends on work that has not finished yet.",
	},
	"AT104": {
		Category: CategoryRuntime,
		Message:  "Atom was evicted",
		Detail:   "The atom's state was removed before its pending value settled.",
	},
	"AT105": {
		Category: CategoryRuntime,
		Message:  "Atom evaluation failed",
		Detail:   "A read or write function returned an error.",
	},
	"AT106": {
		Category: CategoryRuntime,
		Message:  "Expectation failed",
		Detail:   "A step read a value that differs from its expect: entry.",
	},

	// Scenario (AT200-AT299)
	"AT201": {
		Category: CategoryScenario,
		Message:  "Invalid scenario file",
		Detail:   "The file could not be parsed as YAML or JSON.",
	},
	"AT202": {
		Category: CategoryScenario,
		Message:  "Invalid atom declaration",
		Detail:   "Each atom needs exactly one of value: or expr:.",
	},
	"AT203": {
		Category: CategoryScenario,
		Message:  "Unknown atom",
		Detail:   "The name is not declared under atoms:.",
	},
	"AT204": {
		Category: CategoryScenario,
		Message:  "Invalid expression",
		Detail:   "The expression failed to compile.",
	},
	"AT205": {
		Category: CategoryScenario,
		Message:  "Invalid step",
		Detail:   "Each step needs exactly one of set:, read:, subscribe: or unsubscribe:.",
	},
	"AT206": {
		Category: CategoryScenario,
		Message:  "Duplicate atom",
		Detail:   "Atom names must be unique within a scenario.",
	},

	// Config (AT300-AT399)
	"AT301": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "atomctl.yaml could not be parsed.",
	},
	"AT302": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A configuration value is outside its allowed range.",
	},

	// CLI (AT400-AT499)
	"AT401": {
		Category: CategoryCLI,
		Message:  "File not found",
		Detail:   "The scenario file does not exist or cannot be read.",
	},
}

// Codes returns all registered codes.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// Lookup returns the template for a code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces a template.
func Register(code string, t Template) {
	registry[code] = t
}
