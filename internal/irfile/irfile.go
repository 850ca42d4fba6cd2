// Package irfile reads and writes mono IR programs. Hand-written programs use
// YAML; the binary form is msgpack.
package irfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"lgen/internal/mono"
)

// Format selects the on-disk encoding.
type Format uint8

const (
	FormatYAML Format = iota + 1
	FormatMsgpack
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".mp", ".msgpack":
		return FormatMsgpack, nil
	default:
		return 0, fmt.Errorf("%s: unknown IR file extension (want .yaml, .yml or .mp)", path)
	}
}

// Load reads a program from path.
func Load(path string) (*mono.Program, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	prog, err := Unmarshal(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Save writes prog to path in the format its extension names.
func Save(path string, prog *mono.Program) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Marshal(prog, format)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Unmarshal decodes a program.
func Unmarshal(data []byte, format Format) (*mono.Program, error) {
	var doc programDoc
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding msgpack: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	return doc.program()
}

// Marshal encodes prog.
func Marshal(prog *mono.Program, format Format) ([]byte, error) {
	if prog == nil {
		return nil, fmt.Errorf("nil program")
	}
	doc, err := programToDoc(prog)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatMsgpack:
		return msgpack.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
}
