package types

// Sample represents a single observation: a millisecond timestamp and a value.
type Sample[T any] struct {
	Timestamp int64 `json:"ts"`
	Value     T     `json:"value"`
}

// ValueType describes how an attribute's samples should be interpreted
type ValueType string

const (
	ValueNumeric ValueType = "numeric"
	ValueBytes   ValueType = "bytes"
	ValueState   ValueType = "state"
)

// IsNumeric reports whether values of this type can be normalized
func (vt ValueType) IsNumeric() bool {
	return vt == ValueNumeric || vt == ValueBytes
}

// Attribute identifies a tracked attribute of an infrastructure node
type Attribute struct {
	Node   string            `json:"node" yaml:"node"`
	Name   string            `json:"name" yaml:"name"`
	Unit   string            `json:"unit,omitempty" yaml:"unit"`
	Type   ValueType         `json:"type" yaml:"type"`
	Min    float64           `json:"min" yaml:"min"`
	Max    float64           `json:"max" yaml:"max"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels"`
}

// Selection is the visible time range of a window
type Selection struct {
	Start int64 `json:"start"`
	Point int64 `json:"point"`
	Width int64 `json:"width"`
}

// Contains reports whether ts falls inside [Start, Point]
func (s Selection) Contains(ts int64) bool {
	return ts >= s.Start && ts <= s.Point
}
