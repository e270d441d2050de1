package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScriptType selects how a script body is run.
type ScriptType string

const (
	// ScriptShell is a shell command list. It runs under execution.shell,
	// /bin/sh by default; bash-only syntax needs execution.shell: /bin/bash.
	// The "bash" label is kept for catalog document compatibility.
	ScriptShell ScriptType = "bash"

	// ScriptLua is a Lua chunk run in a sandboxed interpreter.
	ScriptLua ScriptType = "lua"
)

// AllScriptTypes returns every supported script type.
func AllScriptTypes() []ScriptType {
	return []ScriptType{ScriptShell, ScriptLua}
}

// ParseScriptType maps user input to a ScriptType. "sh" and "shell" are
// accepted as aliases for bash.
func ParseScriptType(s string) (ScriptType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bash", "sh", "shell":
		return ScriptShell, nil
	case "lua":
		return ScriptLua, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScriptType, s)
	}
}

// Automation is a catalog entry: a script answering an operational question.
type Automation struct {
	ID         int        `json:"id"`
	Question   string     `json:"question"`
	Script     string     `json:"script"`
	ScriptType ScriptType `json:"script_type"`
	Tags       []string   `json:"tags"`
	CreatedAt  time.Time  `json:"created_at"`
	CreatedBy  string     `json:"created_by"`
	TimesUsed  int        `json:"times_used"`
	Version    int        `json:"version"`
	ScriptHash string     `json:"script_hash"`
}

// VersionRecord is one immutable snapshot in an automation's history.
type VersionRecord struct {
	Version    int       `json:"version"`
	Script     string    `json:"script"`
	ScriptHash string    `json:"script_hash"`
	ModifiedAt time.Time `json:"modified_at"`
	ModifiedBy string    `json:"modified_by"`
}

// NewAutomation holds the caller-supplied fields for Store.Add.
type NewAutomation struct {
	Question   string
	Script     string
	Tags       []string
	ScriptType ScriptType
	CreatedBy  string
}

// Catalog is the full persisted state: automations in insertion order plus
// per-automation version history keyed by decimal ID.
type Catalog struct {
	Automations []Automation               `json:"automations"`
	Versions    map[string][]VersionRecord `json:"versions"`
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Automations: []Automation{},
		Versions:    make(map[string][]VersionRecord),
	}
}

// versionKey is the Versions map key for an automation ID.
func versionKey(id int) string {
	return strconv.Itoa(id)
}

// normalize replaces nil collections left by decoding with empty ones.
func (c *Catalog) normalize() {
	if c.Automations == nil {
		c.Automations = []Automation{}
	}
	if c.Versions == nil {
		c.Versions = make(map[string][]VersionRecord)
	}
	for i := range c.Automations {
		if c.Automations[i].Tags == nil {
			c.Automations[i].Tags = []string{}
		}
	}
}

// DeepCopy returns an independent copy of the catalog.
func (c *Catalog) DeepCopy() *Catalog {
	cpy := &Catalog{
		Automations: make([]Automation, len(c.Automations)),
		Versions:    make(map[string][]VersionRecord, len(c.Versions)),
	}
	for i := range c.Automations {
		cpy.Automations[i] = *c.Automations[i].DeepCopy()
	}
	for k, v := range c.Versions {
		cpy.Versions[k] = append([]VersionRecord(nil), v...)
	}
	return cpy
}

// DeepCopy returns an independent copy of the automation.
func (a *Automation) DeepCopy() *Automation {
	cpy := *a
	cpy.Tags = append([]string{}, a.Tags...)
	return &cpy
}
