// Package config defines the display and pacing configuration of a CPU store.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/hackrun/internal/ir"
)

// Screen scale and run-speed bounds.
const (
	MinScreenScale = 1
	MaxScreenScale = 4
	MinSpeed       = 0
	MaxSpeed       = 4
)

// StoreConfig is the complete configuration of a store.
type StoreConfig struct {
	ROMFormat   ir.Format `json:"romFormat" yaml:"romFormat"`
	RAMFormat   ir.Format `json:"ramFormat" yaml:"ramFormat"`
	ScreenScale int       `json:"screenScale" yaml:"screenScale"`
	Speed       int       `json:"speed" yaml:"speed"`
	TestSpeed   int       `json:"testSpeed" yaml:"testSpeed"`
}

// Partial is a configuration update. Nil fields keep their current value.
type Partial struct {
	ROMFormat   *ir.Format
	RAMFormat   *ir.Format
	ScreenScale *int
	Speed       *int
	TestSpeed   *int
}

// ValidationError reports an out-of-range configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a configuration ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Defaults returns the built-in configuration.
func Defaults() StoreConfig {
	return StoreConfig{
		ROMFormat:   ir.FormatAssembly,
		RAMFormat:   ir.FormatDecimal,
		ScreenScale: 1,
		Speed:       2,
		TestSpeed:   2,
	}
}

// Validate checks every field.
func (c StoreConfig) Validate() error {
	return c.Partial().Validate()
}

// Partial returns c as an update that sets every field.
func (c StoreConfig) Partial() Partial {
	return Partial{
		ROMFormat:   &c.ROMFormat,
		RAMFormat:   &c.RAMFormat,
		ScreenScale: &c.ScreenScale,
		Speed:       &c.Speed,
		TestSpeed:   &c.TestSpeed,
	}
}

// Merge returns c with the set fields of p applied. p is not validated.
func (c StoreConfig) Merge(p Partial) StoreConfig {
	if p.ROMFormat != nil {
		c.ROMFormat = *p.ROMFormat
	}
	if p.RAMFormat != nil {
		c.RAMFormat = *p.RAMFormat
	}
	if p.ScreenScale != nil {
		c.ScreenScale = *p.ScreenScale
	}
	if p.Speed != nil {
		c.Speed = *p.Speed
	}
	if p.TestSpeed != nil {
		c.TestSpeed = *p.TestSpeed
	}
	return c
}

// Map renders the configuration for canonical hashing.
func (c StoreConfig) Map() map[string]any {
	return map[string]any{
		"romFormat":   string(c.ROMFormat),
		"ramFormat":   string(c.RAMFormat),
		"screenScale": c.ScreenScale,
		"speed":       c.Speed,
		"testSpeed":   c.TestSpeed,
	}
}

// Validate checks the fields that are set.
func (p Partial) Validate() error {
	if p.ROMFormat != nil && !p.ROMFormat.Valid() {
		return &ValidationError{Field: "romFormat", Message: fmt.Sprintf("invalid format %q", *p.ROMFormat)}
	}
	if p.RAMFormat != nil && !p.RAMFormat.Valid() {
		return &ValidationError{Field: "ramFormat", Message: fmt.Sprintf("invalid format %q", *p.RAMFormat)}
	}
	if p.ScreenScale != nil && (*p.ScreenScale < MinScreenScale || *p.ScreenScale > MaxScreenScale) {
		return &ValidationError{Field: "screenScale", Message: fmt.Sprintf("%d not in [%d, %d]", *p.ScreenScale, MinScreenScale, MaxScreenScale)}
	}
	if p.Speed != nil && !validSpeed(*p.Speed) {
		return &ValidationError{Field: "speed", Message: fmt.Sprintf("%d not in [%d, %d]", *p.Speed, MinSpeed, MaxSpeed)}
	}
	if p.TestSpeed != nil && !validSpeed(*p.TestSpeed) {
		return &ValidationError{Field: "testSpeed", Message: fmt.Sprintf("%d not in [%d, %d]", *p.TestSpeed, MinSpeed, MaxSpeed)}
	}
	return nil
}

// Empty reports whether p sets no field.
func (p Partial) Empty() bool {
	return p.ROMFormat == nil && p.RAMFormat == nil && p.ScreenScale == nil && p.Speed == nil && p.TestSpeed == nil
}

func validSpeed(s int) bool { return s >= MinSpeed && s <= MaxSpeed }

// stepDelays maps run-speed levels to the pause between animated steps.
var stepDelays = [MaxSpeed + 1]time.Duration{
	time.Second,
	250 * time.Millisecond,
	50 * time.Millisecond,
	10 * time.Millisecond,
	0,
}

// StepDelay returns the pause between animated steps at a run-speed level.
// Out-of-range levels are clamped.
func StepDelay(level int) time.Duration {
	if level < MinSpeed {
		level = MinSpeed
	}
	if level > MaxSpeed {
		level = MaxSpeed
	}
	return stepDelays[level]
}

// Helpers for building a Partial inline.

// Format returns a pointer to f.
func Format(f ir.Format) *ir.Format { return &f }

// Int returns a pointer to n.
func Int(n int) *int { return &n }
