package wire

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Arg is one ordered argument of a service request. Value may be a
// string, bool, int, int64, float64, nil (serialized as xsi:nil) or a
// nested []Arg for the contract's composite types.
type Arg struct {
	Name  string
	Value interface{}
}

// Nested builds a composite argument from child arguments.
func Nested(name string, kids ...Arg) Arg {
	return Arg{Name: name, Value: kids}
}

// EncodeArgs writes the ordered arguments as sibling elements.
func EncodeArgs(e *xml.Encoder, args []Arg) error {
	for _, a := range args {
		if err := encodeArg(e, a); err != nil {
			return err
		}
	}
	return nil
}

func encodeArg(e *xml.Encoder, a Arg) error {
	start := xml.StartElement{Name: xml.Name{Local: a.Name}}

	switch v := a.Value.(type) {
	case nil:
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: "xsi:nil"},
			Value: "true",
		})
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		return e.EncodeToken(start.End())
	case []Arg:
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		if err := EncodeArgs(e, v); err != nil {
			return err
		}
		return e.EncodeToken(start.End())
	default:
		return e.EncodeElement(scalarText(v), start)
	}
}

func scalarText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ValidateArgs rejects argument values outside the supported scalar and
// composite set before they reach the encoder.
func ValidateArgs(args []Arg) error {
	for _, a := range args {
		switch v := a.Value.(type) {
		case nil, string, bool, float64, float32, int, int64:
		case []Arg:
			if err := ValidateArgs(v); err != nil {
				return err
			}
		default:
			return errors.Errorf("argument %q has unsupported type %T", a.Name, v)
		}
	}
	return nil
}
