package schema

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// xmlRoot is the tagged tree spec.md §6 describes: a root holding any
// number of namelist groups, each holding <param> entries.
type xmlRoot struct {
	XMLName xml.Name    `xml:"parameters"`
	Groups  []xmlGroup  `xml:"group"`
}

type xmlGroup struct {
	Name    string     `xml:"name,attr"`
	Display string     `xml:"display,attr"`
	Params  []xmlParam `xml:"param"`
}

type xmlParam struct {
	Index    int         `xml:"index"`
	Name     string      `xml:"name"`
	Type     string      `xml:"type"`
	Value    xmlValue    `xml:"value"`
	MinValue string      `xml:"min_value"`
	MaxValue string      `xml:"max_value"`
	Gap      string      `xml:"gap"`
	Display  string      `xml:"display"`
	Fixed    string      `xml:"fixed"`
}

// xmlValue captures the optional 2-D x/y attributes spec.md §6 allows on
// <value> for 2-D-indexed parameter names (e.g. VMEC mode coefficients).
// The attributes are accepted for round-trip fidelity with the original
// XML but are not otherwise interpreted; the dense schema index is what
// the rest of the engine addresses parameters by.
type xmlValue struct {
	X     string `xml:"x,attr"`
	Y     string `xml:"y,attr"`
	Value string `xml:",chardata"`
}

// LoadXML reads an XML parameter-schema file per spec.md §6 and returns an
// immutable ParameterSchema. Groups carrying display="False" are skipped
// entirely (their params never appear in the resulting schema, matching the
// original source's handling of hidden namelist groups).
func LoadXML(path string) (*ParameterSchema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %s: %w", path, err)
	}
	defer f.Close()
	return decodeXML(f)
}

func decodeXML(r io.Reader) (*ParameterSchema, error) {
	var root xmlRoot
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}

	var params []Parameter
	for _, g := range root.Groups {
		if !parseBool(g.Display, true) {
			continue
		}
		for _, xp := range g.Params {
			p, err := xp.toParameter()
			if err != nil {
				return nil, fmt.Errorf("schema: group %q: %w", g.Name, err)
			}
			params = append(params, p)
		}
	}
	return New(params)
}

func (xp xmlParam) toParameter() (Parameter, error) {
	kind, err := parseKind(xp.Type)
	if err != nil {
		return Parameter{}, fmt.Errorf("param %q: %w", xp.Name, err)
	}
	min, err := parseFloatOr(xp.MinValue, 0)
	if err != nil {
		return Parameter{}, fmt.Errorf("param %q: min_value: %w", xp.Name, err)
	}
	max, err := parseFloatOr(xp.MaxValue, 0)
	if err != nil {
		return Parameter{}, fmt.Errorf("param %q: max_value: %w", xp.Name, err)
	}
	step, err := parseFloatOr(xp.Gap, 0)
	if err != nil {
		return Parameter{}, fmt.Errorf("param %q: gap: %w", xp.Name, err)
	}
	init, _ := parseFloatOr(xp.Value.Value, min)
	return Parameter{
		Index:   xp.Index,
		Name:    xp.Name,
		Kind:    kind,
		Min:     min,
		Max:     max,
		Step:    step,
		Fixed:   parseBool(xp.Fixed, false),
		Display: parseBool(xp.Display, true),
		Init:    init,
		InitStr: strings.TrimSpace(xp.Value.Value),
	}, nil
}

func parseKind(t string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "double", "float", "real":
		return Real, nil
	case "int", "integer":
		return Integer, nil
	case "bool", "boolean":
		return Boolean, nil
	case "string", "str":
		return String, nil
	default:
		return 0, fmt.Errorf("unknown type %q", t)
	}
}

func parseFloatOr(s string, def float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return def
	}
	return b
}
