package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/hackrun/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// fileConfig mirrors the schema with plain Go types for cue.Value.Decode.
type fileConfig struct {
	ROMFormat   *string `json:"romFormat,omitempty"`
	RAMFormat   *string `json:"ramFormat,omitempty"`
	ScreenScale *int    `json:"screenScale,omitempty"`
	Speed       *int    `json:"speed,omitempty"`
	TestSpeed   *int    `json:"testSpeed,omitempty"`
}

// LoadFile reads a configuration file. Files ending in ".cue" are compiled as
// CUE; anything else is parsed as YAML (which includes JSON).
func LoadFile(path string) (Partial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Partial{}, fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(path, data)
	}
	return ParseYAML(data)
}

// ParseYAML parses a YAML configuration document and validates it against
// the schema. Unknown keys are rejected.
func ParseYAML(data []byte) (Partial, error) {
	var doc map[string]any
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Partial{}, fmt.Errorf("parse config YAML: %w", err)
	}
	if doc == nil {
		return Partial{}, nil
	}

	ctx := cuecontext.New()
	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return Partial{}, fmt.Errorf("encode config: %w", err)
	}
	return validate(ctx, value)
}

// ParseCUE compiles a CUE configuration file and validates it against the
// schema.
func ParseCUE(filename string, data []byte) (Partial, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return Partial{}, fmt.Errorf("compile config: %w", err)
	}
	return validate(ctx, value)
}

func validate(ctx *cue.Context, value cue.Value) (Partial, error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Partial{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Partial{}, &ValidationError{Field: "file", Message: err.Error()}
	}

	var fc fileConfig
	if err := unified.Decode(&fc); err != nil {
		return Partial{}, fmt.Errorf("decode config: %w", err)
	}

	p := Partial{
		ScreenScale: fc.ScreenScale,
		Speed:       fc.Speed,
		TestSpeed:   fc.TestSpeed,
	}
	if fc.ROMFormat != nil {
		p.ROMFormat = Format(ir.Format(*fc.ROMFormat))
	}
	if fc.RAMFormat != nil {
		p.RAMFormat = Format(ir.Format(*fc.RAMFormat))
	}
	return p, p.Validate()
}
