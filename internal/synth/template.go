package synth

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Template is the deployment template handed to the external provisioning
// tool. The target schema is externally defined; this package only serializes
// a composed stack into it.
type Template struct {
	FormatVersion string              `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description   string              `json:"Description,omitempty" yaml:"Description,omitempty"`
	Resources     map[string]Resource `json:"Resources" yaml:"Resources"`
	Outputs       map[string]Output   `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// Resource is one declared resource in the template.
type Resource struct {
	Type           string         `json:"Type" yaml:"Type"`
	DeletionPolicy string         `json:"DeletionPolicy,omitempty" yaml:"DeletionPolicy,omitempty"`
	Properties     map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
}

// Output is one post-provisioning value surfaced by the template.
type Output struct {
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any    `json:"Value" yaml:"Value"`
}

// JSON renders the template as indented JSON, the default output format.
func (t *Template) JSON() ([]byte, error) {
	out, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// YAML renders the template as YAML.
func (t *Template) YAML() ([]byte, error) {
	return yaml.Marshal(t)
}
