package cohere

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Codec defines the serialization contract for snapshot export and restore.
// Implement this interface to use alternative formats like TOML or custom
// binary formats.
type Codec interface {
	// Marshal serializes a value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a value.
	Unmarshal(data []byte, v any) error

	// ContentType returns the MIME type for observability and debugging.
	ContentType() string
}

// JSONCodec implements Codec using encoding/json.
type JSONCodec struct{}

// Marshal serializes v to JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON bytes into v.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ContentType returns the JSON MIME type.
func (JSONCodec) ContentType() string {
	return "application/json"
}

// Ensure JSONCodec implements Codec.
var _ Codec = JSONCodec{}

// YAMLCodec implements Codec using gopkg.in/yaml.v3.
type YAMLCodec struct{}

// Marshal serializes v to YAML.
func (YAMLCodec) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// Unmarshal deserializes YAML bytes into v.
func (YAMLCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// ContentType returns the YAML MIME type.
func (YAMLCodec) ContentType() string {
	return "application/x-yaml"
}

// Ensure YAMLCodec implements Codec.
var _ Codec = YAMLCodec{}

// Export serializes the committed snapshot with the given codec.
func (c *Controller[V]) Export(codec Codec) ([]byte, error) {
	snap := c.Snapshot()
	out := make(map[string]V, len(snap))
	for k, v := range snap {
		out[string(k)] = v
	}
	return codec.Marshal(out)
}

// Restore deserializes data with the given codec and submits the primary
// fields it contains through the engine, so a restored snapshot is derived
// and verified like any other input. Derived fields present in the data are
// ignored; they are recomputed by the resolver.
func (c *Controller[V]) Restore(data []byte, codec Codec) error {
	var raw map[string]V
	if err := codec.Unmarshal(data, &raw); err != nil {
		return err
	}

	values := make(Snapshot[V])
	for k, v := range raw {
		if c.schema.IsPrimary(Key(k)) {
			values[Key(k)] = v
		}
	}
	if len(values) == 0 {
		return &RejectionError{Reason: "restore data contains no primary fields"}
	}

	var err error
	c.loop.Do(func() { err = c.submit(values, OriginRestore, nil) })
	return err
}
