// Package output provides output formatting for clustercomm-cli.
package output

import "io"

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

// Format writes nothing and returns nil; YAML encoding is not implemented.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	// TODO: Use gopkg.in/yaml.v3 for YAML encoding
	return nil
}
