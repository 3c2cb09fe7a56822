package ridership

import (
	"fmt"
	"strings"
)

// OperatorAlias maps a raw operator key from the feed to its display label.
type OperatorAlias struct {
	RawKey       string
	DisplayLabel string
}

// DefaultOperatorAliases returns the built-in alias table.
func DefaultOperatorAliases() []OperatorAlias {
	return []OperatorAlias{
		{RawKey: "TokyoMetro", DisplayLabel: "Tokyo Metro"},
	}
}

// ParseOperatorAliases parses "Raw=Label;Raw2=Label2" into an alias table.
// Empty entries are skipped.
func ParseOperatorAliases(s string) ([]OperatorAlias, error) {
	var aliases []OperatorAlias
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		raw, label, ok := strings.Cut(entry, "=")
		raw, label = strings.TrimSpace(raw), strings.TrimSpace(label)
		if !ok || raw == "" || label == "" {
			return nil, fmt.Errorf("invalid operator alias %q: want RawKey=Display Label", entry)
		}
		aliases = append(aliases, OperatorAlias{RawKey: raw, DisplayLabel: label})
	}
	return aliases, nil
}

// AliasTable resolves operator display labels.
type AliasTable struct {
	labels map[string]string
}

// NewAliasTable builds a lookup table. Later entries win over earlier ones
// with the same raw key.
func NewAliasTable(aliases []OperatorAlias) AliasTable {
	labels := make(map[string]string, len(aliases))
	for _, a := range aliases {
		labels[a.RawKey] = a.DisplayLabel
	}
	return AliasTable{labels: labels}
}

// Label returns the display label for raw, or raw unchanged.
func (t AliasTable) Label(raw string) string {
	if label, ok := t.labels[raw]; ok {
		return label
	}
	return raw
}
