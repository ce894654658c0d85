package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ControlType discriminates the closed set of control variants. The set is
// exhaustive: unmarshalling an unknown type is an error, not an ignored field
// bag.
type ControlType string

const (
	ControlTypeSelect             ControlType = "select"
	ControlTypeSlider             ControlType = "slider"
	ControlTypeNumber             ControlType = "number"
	ControlTypeText               ControlType = "text"
	ControlTypeBackgroundSelector ControlType = "backgroundSelector"
)

// SelectOption is one choice in a select control.
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SelectControl holds select-specific fields.
type SelectControl struct {
	Options []SelectOption `json:"options"`
}

// RangeControl holds the numeric constraints shared by slider and number
// controls.
type RangeControl struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// TextControl holds text-specific fields.
type TextControl struct {
	MaxLength   int    `json:"maxLength,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// BackgroundOption is one entry in a background selector.
type BackgroundOption struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// BackgroundControl holds backgroundSelector-specific fields.
type BackgroundControl struct {
	Backgrounds []BackgroundOption `json:"backgrounds"`
}

// Control is one configurable input exposed to end users. Key doubles as the
// prompt-template variable name, so keys must be unique within a project.
// Exactly one variant field is set, matching Type.
type Control struct {
	Type         ControlType     `json:"type"`
	Key          string          `json:"key"`
	Label        string          `json:"label"`
	Description  string          `json:"description,omitempty"`
	Required     bool            `json:"required,omitempty"`
	DefaultValue json.RawMessage `json:"defaultValue,omitempty"`

	Select     *SelectControl     `json:"-"`
	Slider     *RangeControl      `json:"-"`
	Number     *RangeControl      `json:"-"`
	Text       *TextControl       `json:"-"`
	Background *BackgroundControl `json:"-"`
}

// controlEnvelope is the flat wire form of a control.
type controlEnvelope struct {
	Type         ControlType     `json:"type"`
	Key          string          `json:"key"`
	Label        string          `json:"label"`
	Description  string          `json:"description,omitempty"`
	Required     bool            `json:"required,omitempty"`
	DefaultValue json.RawMessage `json:"defaultValue,omitempty"`

	Options     []SelectOption     `json:"options,omitempty"`
	Min         *float64           `json:"min,omitempty"`
	Max         *float64           `json:"max,omitempty"`
	Step        *float64           `json:"step,omitempty"`
	MaxLength   int                `json:"maxLength,omitempty"`
	Placeholder string             `json:"placeholder,omitempty"`
	Backgrounds []BackgroundOption `json:"backgrounds,omitempty"`
}

// UnmarshalJSON decodes the flat wire form into the matching variant.
// Unknown control types are rejected.
func (c *Control) UnmarshalJSON(data []byte) error {
	var env controlEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	*c = Control{
		Type:         env.Type,
		Key:          env.Key,
		Label:        env.Label,
		Description:  env.Description,
		Required:     env.Required,
		DefaultValue: env.DefaultValue,
	}

	switch env.Type {
	case ControlTypeSelect:
		c.Select = &SelectControl{Options: env.Options}
	case ControlTypeSlider:
		c.Slider = rangeFromEnvelope(&env)
	case ControlTypeNumber:
		c.Number = rangeFromEnvelope(&env)
	case ControlTypeText:
		c.Text = &TextControl{MaxLength: env.MaxLength, Placeholder: env.Placeholder}
	case ControlTypeBackgroundSelector:
		c.Background = &BackgroundControl{Backgrounds: env.Backgrounds}
	default:
		return fmt.Errorf("unknown control type %q for key %q", env.Type, env.Key)
	}

	return nil
}

func rangeFromEnvelope(env *controlEnvelope) *RangeControl {
	r := &RangeControl{}
	if env.Min != nil {
		r.Min = *env.Min
	}
	if env.Max != nil {
		r.Max = *env.Max
	}
	if env.Step != nil {
		r.Step = *env.Step
	}
	return r
}

// MarshalJSON renders the flat wire form.
func (c Control) MarshalJSON() ([]byte, error) {
	env := controlEnvelope{
		Type:         c.Type,
		Key:          c.Key,
		Label:        c.Label,
		Description:  c.Description,
		Required:     c.Required,
		DefaultValue: c.DefaultValue,
	}

	switch c.Type {
	case ControlTypeSelect:
		if c.Select != nil {
			env.Options = c.Select.Options
		}
	case ControlTypeSlider:
		if c.Slider != nil {
			env.Min, env.Max, env.Step = &c.Slider.Min, &c.Slider.Max, &c.Slider.Step
		}
	case ControlTypeNumber:
		if c.Number != nil {
			env.Min, env.Max, env.Step = &c.Number.Min, &c.Number.Max, &c.Number.Step
		}
	case ControlTypeText:
		if c.Text != nil {
			env.MaxLength = c.Text.MaxLength
			env.Placeholder = c.Text.Placeholder
		}
	case ControlTypeBackgroundSelector:
		if c.Background != nil {
			env.Backgrounds = c.Background.Backgrounds
		}
	default:
		return nil, fmt.Errorf("unknown control type %q for key %q", c.Type, c.Key)
	}

	return json.Marshal(env)
}

// InputConfig describes the required image input cardinality for a project.
type InputConfig struct {
	ImageSize         int      `json:"imageSize"`
	ImageDescriptions []string `json:"imageDescriptions,omitempty"`
	AllowedTypes      []string `json:"allowedTypes,omitempty"`
	MaxSize           int64    `json:"maxSize,omitempty"`
	Requirements      string   `json:"requirements,omitempty"`
}

// ProjectControls is the persisted controlsConfig column: required input
// cardinality plus the ordered dynamic control list.
type ProjectControls struct {
	InputConfig InputConfig `json:"inputConfig"`
	Controls    []Control   `json:"controlsConfig"`
}

// Validate checks control-key uniqueness and per-variant constraints.
// Keys become prompt-template variable names, so duplicates would make
// substitution ambiguous.
func (pc *ProjectControls) Validate() error {
	seen := make(map[string]struct{}, len(pc.Controls))
	for _, ctl := range pc.Controls {
		if ctl.Key == "" {
			return fmt.Errorf("control of type %q has empty key", ctl.Type)
		}
		if _, dup := seen[ctl.Key]; dup {
			return fmt.Errorf("duplicate control key %q", ctl.Key)
		}
		seen[ctl.Key] = struct{}{}

		switch ctl.Type {
		case ControlTypeSelect:
			if ctl.Select == nil || len(ctl.Select.Options) == 0 {
				return fmt.Errorf("select control %q has no options", ctl.Key)
			}
		case ControlTypeSlider, ControlTypeNumber:
			r := ctl.Slider
			if ctl.Type == ControlTypeNumber {
				r = ctl.Number
			}
			if r == nil {
				return fmt.Errorf("%s control %q has no range", ctl.Type, ctl.Key)
			}
			if r.Min > r.Max {
				return fmt.Errorf("%s control %q has min > max", ctl.Type, ctl.Key)
			}
			if r.Step < 0 {
				return fmt.Errorf("%s control %q has negative step", ctl.Type, ctl.Key)
			}
		case ControlTypeText:
			// No structural constraints.
		case ControlTypeBackgroundSelector:
			if ctl.Background == nil || len(ctl.Background.Backgrounds) == 0 {
				return fmt.Errorf("backgroundSelector control %q has no backgrounds", ctl.Key)
			}
		default:
			return fmt.Errorf("unknown control type %q for key %q", ctl.Type, ctl.Key)
		}
	}
	return nil
}

// Value implements driver.Valuer for database serialization.
func (pc ProjectControls) Value() (driver.Value, error) {
	return json.Marshal(pc)
}

// Scan implements sql.Scanner for database deserialization.
func (pc *ProjectControls) Scan(value interface{}) error {
	if value == nil {
		*pc = ProjectControls{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ProjectControls", value)
	}

	return json.Unmarshal(bytes, pc)
}
