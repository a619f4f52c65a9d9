package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/respkv-go/pkg/resp"
)

// YAMLFormatter formats replies as YAML.
type YAMLFormatter struct{}

// Format formats the reply as a YAML document.
func (f *YAMLFormatter) Format(w io.Writer, reply resp.Frame) error {
	return encodeYAML(w, Value(reply))
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// EncodeValue writes an arbitrary value as JSON or YAML.
func EncodeValue(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		return encodeJSON(w, v)
	case FormatYAML:
		return encodeYAML(w, v)
	default:
		return fmt.Errorf("format %q cannot encode values", format)
	}
}
