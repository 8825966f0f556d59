package plugin

import "fmt"

// OptionType constrains the values a node may hand back for a registered
// option in the init message.
type OptionType string

const (
	OptionTypeString OptionType = "string"
	OptionTypeInt    OptionType = "int"
	OptionTypeBool   OptionType = "bool"
	OptionTypeFlag   OptionType = "flag"
)

// OptionDescriptor is one plugin-defined startup option. Per spec.md §9
// ("Variadic option registration"), this replaces the positional
// string/type/handler quadruple the teacher's domain (and the source CLN
// plugin API) uses with a typed, ordered value: a Host is built from a
// []OptionDescriptor instead of a variadic call.
type OptionDescriptor struct {
	Name        string
	Type        OptionType
	Default     string
	Description string

	// Parse validates and applies the raw string value the node supplied
	// in init's options object. It is called only for options present
	// there; when the node omits an option, Parse is not called and
	// Default is not passed to it. A non-nil error fails init fatally,
	// per spec.md §4.4.
	Parse func(value string) error
}

// optionManifestEntry is the wire shape of one option inside getmanifest's
// options array. Grounded in the teacher's daemon.Request/Response JSON
// shapes (encoding/json struct tags, map[string]interface{} fields).
type optionManifestEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

func (o OptionDescriptor) validate() error {
	if o.Name == "" {
		return fmt.Errorf("option descriptor missing name")
	}
	switch o.Type {
	case OptionTypeString, OptionTypeInt, OptionTypeBool, OptionTypeFlag:
	default:
		return fmt.Errorf("option %q: unknown type %q", o.Name, o.Type)
	}
	if o.Parse == nil {
		return fmt.Errorf("option %q missing Parse callback", o.Name)
	}
	return nil
}
