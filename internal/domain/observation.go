package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// FieldNames is the fixed column order of a buoy history file. Downstream
// consumers rely on these names and this order; do not reorder or rename.
var FieldNames = [NumFields]string{
	"obs_time",
	"tp",
	"dirp",
	"sprp",
	"tz",
	"hs",
	"ti",
	"t1",
	"tc",
	"tdw2",
	"tdw1",
	"tpc",
	"nu",
	"eps",
	"qp",
	"ss",
	"tref",
	"tsea",
	"bat",
}

const (
	// NumFields is the width of every data row, timestamp included.
	NumFields = 19
	// NumMeasurements is the number of fields following obs_time.
	NumMeasurements = NumFields - 1
)

// FieldDescriptions documents each column as the buoy vendor labels it.
var FieldDescriptions = map[string]string{
	"obs_time": "Observation Time",
	"tp":       "the peak period (the reciprocal of the peak frequency) [s]",
	"dirp":     "the wave direction at the peak frequency [°]",
	"sprp":     "the directional spread at the peak frequency [°]",
	"tz":       "the zero-upcross period [s]",
	"hs":       "the significant wave height [cm]",
	"ti":       "the integral period, or Tm(-2,0) [s]",
	"t1":       "the mean period, or Tm(0,1) [s]",
	"tc":       "the crest period, or Tm(2,4) [s]",
	"tdw2":     "wave period Tm(-1,1) [s]",
	"tdw1":     "peak period estimator [s]",
	"tpc":      "calculated peak period [s]",
	"nu":       "Longuet-Higgins bandwidth parameter []",
	"eps":      "bandwidth parameter []",
	"qp":       "Goda's peakedness parameter []",
	"ss":       "significant steepness []",
	"tref":     "reference temperature []",
	"tsea":     "Sea surface temperature",
	"bat":      "battery status",
}

// ValueKind is the inferred scalar type of a measurement cell.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindText
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Value is a single measurement as read from the file. Numbers keep their
// float64 representation; anything that does not parse stays text.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
}

// NumberValue wraps a float64.
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// TextValue wraps a non-numeric cell.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

// InferValue applies the decoder's type inference to a trimmed cell:
// empty is null, anything strconv accepts as a float is a number
// (scientific notation included), everything else is text.
func InferValue(s string) Value {
	if s == "" {
		return Value{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return NumberValue(f)
	}
	return TextValue(s)
}

// Float returns the numeric value and whether the cell was numeric.
func (v Value) Float() (float64, bool) {
	return v.Number, v.Kind == KindNumber
}

// IsNull reports whether the cell was empty.
func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and empty
// cells as null. NaN and Inf have no JSON form and are emitted as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		b, err := json.Marshal(v.Number)
		if err != nil {
			return json.Marshal(v.String())
		}
		return b, nil
	case KindText:
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. The strings "NaN", "+Inf" and
// "-Inf" decode back to numbers; the decoder never yields them as text since
// strconv parses all three.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*v = NumberValue(math.NaN())
		case "+Inf":
			*v = NumberValue(math.Inf(1))
		case "-Inf":
			*v = NumberValue(math.Inf(-1))
		default:
			*v = TextValue(s)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = NumberValue(f)
	return nil
}

// Field is one named column of an observation.
type Field struct {
	Name  string
	Value any // time.Time for obs_time, Value for everything else
}

// Observation is one decoded row of a buoy history file.
type Observation struct {
	ObsTime time.Time
	Values  [NumMeasurements]Value
}

// Fields returns the row as ordered name/value pairs.
func (o Observation) Fields() []Field {
	out := make([]Field, 0, NumFields)
	out = append(out, Field{Name: FieldNames[0], Value: o.ObsTime})
	for i, v := range o.Values {
		out = append(out, Field{Name: FieldNames[i+1], Value: v})
	}
	return out
}

// Get returns the measurement stored under name. obs_time is not a
// measurement; read ObsTime directly.
func (o Observation) Get(name string) (Value, bool) {
	i := measurementIndex(name)
	if i < 0 {
		return Value{}, false
	}
	return o.Values[i], true
}

// MarshalJSON writes the fields in schema order.
func (o Observation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fmt.Fprintf(&buf, "%q:%q", FieldNames[0], o.ObsTime.UTC().Format(time.RFC3339Nano))
	for i, v := range o.Values {
		b, err := v.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", FieldNames[i+1], err)
		}
		fmt.Fprintf(&buf, ",%q:", FieldNames[i+1])
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object produced by MarshalJSON. Unknown keys are
// ignored and missing measurements stay null.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Observation
	if ts, ok := raw[FieldNames[0]]; ok {
		if err := json.Unmarshal(ts, &out.ObsTime); err != nil {
			return fmt.Errorf("unmarshal obs_time: %w", err)
		}
	}
	for i := range out.Values {
		msg, ok := raw[FieldNames[i+1]]
		if !ok {
			continue
		}
		if err := out.Values[i].UnmarshalJSON(msg); err != nil {
			return fmt.Errorf("unmarshal %s: %w", FieldNames[i+1], err)
		}
	}
	*o = out
	return nil
}

// Batch is everything decoded from one file.
type Batch struct {
	Values []Observation `json:"values"`
}

func measurementIndex(name string) int {
	for i := 1; i < NumFields; i++ {
		if FieldNames[i] == name {
			return i - 1
		}
	}
	return -1
}
