// Package config handles application configuration.
package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FlexBool is a boolean type that can be unmarshalled from a boolean, a string, or a number.
type FlexBool bool

// UnmarshalYAML implements the yaml.Unmarshaler interface for FlexBool.
func (fb *FlexBool) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!bool":
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		*fb = FlexBool(b)
	case "!!str":
		b, err := strconv.ParseBool(value.Value)
		if err != nil {
			return fmt.Errorf("cannot unmarshal string %q into FlexBool", value.Value)
		}
		*fb = FlexBool(b)
	case "!!int":
		i, err := strconv.Atoi(value.Value)
		if err != nil {
			return err
		}
		*fb = FlexBool(i != 0)
	default:
		return fmt.Errorf("cannot unmarshal %s into FlexBool", value.Tag)
	}
	return nil
}

// Millis is a duration that unmarshals from an integer number of
// milliseconds or from a Go duration string such as "1.5s".
type Millis time.Duration

// Duration returns m as a time.Duration.
func (m Millis) Duration() time.Duration { return time.Duration(m) }

// UnmarshalYAML implements the yaml.Unmarshaler interface for Millis.
func (m *Millis) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int":
		ms, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*m = Millis(time.Duration(ms) * time.Millisecond)
	case "!!float":
		ms, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return err
		}
		*m = Millis(time.Duration(ms * float64(time.Millisecond)))
	case "!!str":
		d, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("cannot unmarshal string %q into Millis: %w", value.Value, err)
		}
		*m = Millis(d)
	default:
		return fmt.Errorf("cannot unmarshal %s into Millis", value.Tag)
	}
	return nil
}

// MarshalYAML writes Millis back as a duration string.
func (m Millis) MarshalYAML() (interface{}, error) {
	return time.Duration(m).String(), nil
}
