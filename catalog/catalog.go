// Package catalog normalizes model identifiers per CLI type.
//
// Each CLI has its own model naming scheme; the catalog maps friendly
// aliases ("sonnet", "gpt-5") to the identifier the binary expects.
// Built-in tables cover the common aliases and a YAML file can extend or
// override them. Normalization never fails a request: an unknown alias
// passes through unchanged, and a catalog that cannot be loaded falls
// back to the built-in tables.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmora/agentdeck"
)

// Catalog resolves model aliases. The zero value is not usable; use
// Builtin or Load.
type Catalog struct {
	aliases  map[agentdeck.CLIType]map[string]string
	defaults map[agentdeck.CLIType]string
}

// builtinAliases are the baked-in alias tables.
var builtinAliases = map[agentdeck.CLIType]map[string]string{
	agentdeck.CLIClaude: {
		"opus":   "claude-opus-4-5",
		"sonnet": "claude-sonnet-4-5",
		"haiku":  "claude-haiku-4-5",
	},
	agentdeck.CLICodex: {
		"gpt-5":      "gpt-5",
		"gpt-5-mini": "gpt-5-mini",
		"o3":         "o3",
	},
}

var builtinDefaults = map[agentdeck.CLIType]string{
	agentdeck.CLIClaude: "claude-sonnet-4-5",
	agentdeck.CLICodex:  "gpt-5",
}

// Builtin returns a catalog with only the built-in tables.
func Builtin() *Catalog {
	c := &Catalog{
		aliases:  make(map[agentdeck.CLIType]map[string]string),
		defaults: make(map[agentdeck.CLIType]string),
	}
	for cli, table := range builtinAliases {
		m := make(map[string]string, len(table))
		for k, v := range table {
			m[k] = v
		}
		c.aliases[cli] = m
	}
	for cli, def := range builtinDefaults {
		c.defaults[cli] = def
	}
	return c
}

// fileFormat is the YAML shape of a catalog file:
//
//	claude:
//	  default: claude-sonnet-4-5
//	  aliases:
//	    fast: claude-haiku-4-5
//	codex:
//	  aliases:
//	    mini: gpt-5-mini
type fileFormat map[string]struct {
	Default string            `yaml:"default"`
	Aliases map[string]string `yaml:"aliases"`
}

// Load returns the built-in catalog extended by the YAML file at path.
// File entries win over built-ins. An empty path returns Builtin().
func Load(path string) (*Catalog, error) {
	c := Builtin()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	for cliName, entry := range ff {
		cli := agentdeck.CLIType(cliName)
		table := c.aliases[cli]
		if table == nil {
			table = make(map[string]string)
			c.aliases[cli] = table
		}
		for alias, model := range entry.Aliases {
			table[strings.ToLower(alias)] = model
		}
		if entry.Default != "" {
			c.defaults[cli] = entry.Default
		}
	}
	return c, nil
}

// Normalize maps a model alias to the identifier the CLI expects.
// An empty model resolves to the CLI's default; an unknown alias passes
// through unchanged.
func (c *Catalog) Normalize(cli agentdeck.CLIType, model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return c.defaults[cli]
	}
	if resolved, ok := c.aliases[cli][strings.ToLower(model)]; ok {
		return resolved
	}
	return model
}

// Default returns the default model for a CLI type, or "" if none.
func (c *Catalog) Default(cli agentdeck.CLIType) string {
	return c.defaults[cli]
}
