// Package header parses MINC-style volume headers and normalizes them into
// the canonical axis description used for slice extraction.
package header

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Number is a numeric header field. MINC headers carry numbers as strings
// ("256", "-1.0"), but plain JSON numbers are accepted too. The literal is
// kept as text and parsed during normalization.
type Number string

// UnmarshalJSON accepts either a quoted string or a bare JSON number.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("expected number or numeric string, got %s", data)
	}
	*n = Number(f.String())
	return nil
}

// MarshalJSON writes the number back as a string, as MINC tools do.
func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

// Float parses the field. An empty field is reported as missing.
func (n Number) Float() (float64, error) {
	if n == "" {
		return 0, fmt.Errorf("missing value")
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", string(n))
	}
	return f, nil
}

// Num formats a float as a header Number.
func Num(f float64) Number {
	return Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// RawAxis is one axis record exactly as it appears in a header file
type RawAxis struct {
	SpaceLength      Number   `json:"space_length"`
	Start            Number   `json:"start"`
	Step             Number   `json:"step"`
	DirectionCosines []Number `json:"direction_cosines,omitempty"`
}

// RawHeader is an unnormalized header. Order may hold 3 spatial axis names
// or 4 names with the time axis first.
type RawHeader struct {
	Order    []string `json:"order"`
	XSpace   *RawAxis `json:"xspace"`
	YSpace   *RawAxis `json:"yspace"`
	ZSpace   *RawAxis `json:"zspace"`
	Time     *RawAxis `json:"time,omitempty"`
	Datatype string   `json:"datatype,omitempty"`
}

func (r *RawHeader) axis(name string) *RawAxis {
	switch name {
	case "xspace":
		return r.XSpace
	case "yspace":
		return r.YSpace
	case "zspace":
		return r.ZSpace
	}
	return nil
}

// ParseJSON decodes header text.
func ParseJSON(data []byte) (*RawHeader, error) {
	var raw RawHeader
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: header is not valid JSON: %v", ErrMalformedHeader, err)
	}
	return &raw, nil
}
