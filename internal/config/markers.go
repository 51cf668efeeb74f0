package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MarkerRules holds the endpoint-specific textual markers the classifier
// matches against response bodies and headers. Body markers are matched
// case-insensitively as substrings; edge headers are response header names
// whose presence on a 403 marks an edge-protection block.
type MarkerRules struct {
	Success     []string `yaml:"success"`
	Used        []string `yaml:"used"`
	Expired     []string `yaml:"expired"`
	CapReached  []string `yaml:"cap_reached"`
	NotFound    []string `yaml:"not_found"`
	Block       []string `yaml:"block"`
	EdgeHeaders []string `yaml:"edge_headers"`
}

// DefaultMarkerRules returns generic markers that match common redemption
// endpoints. Real deployments should override them with a rules file.
func DefaultMarkerRules() MarkerRules {
	return MarkerRules{
		Success:     []string{`"success": true`, `"success":true`, "has been applied"},
		Used:        []string{"already been used", "already redeemed", "already used"},
		Expired:     []string{"expired"},
		CapReached:  []string{"usage limit", "maximum number"},
		NotFound:    []string{"not known in our database"},
		Block:       []string{"challenge", "rate limit", "access denied"},
		EdgeHeaders: []string{"Cf-Ray", "Retry-After"},
	}
}

// LoadMarkerRules reads a YAML rules file, falling back to the defaults for
// any category the file leaves empty. An empty path returns the defaults.
func LoadMarkerRules(path string) (MarkerRules, error) {
	rules := DefaultMarkerRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read marker rules file %s: %w", path, err)
	}
	var loaded MarkerRules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return rules, fmt.Errorf("failed to parse marker rules file %s: %w", path, err)
	}
	rules.merge(loaded)
	return rules, nil
}

// WriteDefaultMarkerRules generates a template rules file the operator can edit.
func WriteDefaultMarkerRules(path string) error {
	data, err := yaml.Marshal(DefaultMarkerRules())
	if err != nil {
		return err
	}
	header := []byte("# Nightshade classifier marker rules.\n# Body markers are case-insensitive substrings; edge_headers are header names.\n")
	return os.WriteFile(path, append(header, data...), 0644)
}

func (m *MarkerRules) merge(o MarkerRules) {
	if len(o.Success) > 0 {
		m.Success = o.Success
	}
	if len(o.Used) > 0 {
		m.Used = o.Used
	}
	if len(o.Expired) > 0 {
		m.Expired = o.Expired
	}
	if len(o.CapReached) > 0 {
		m.CapReached = o.CapReached
	}
	if len(o.NotFound) > 0 {
		m.NotFound = o.NotFound
	}
	if len(o.Block) > 0 {
		m.Block = o.Block
	}
	if len(o.EdgeHeaders) > 0 {
		m.EdgeHeaders = o.EdgeHeaders
	}
}
