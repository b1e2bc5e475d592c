package wire

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Node is a dynamic view of one element of a service response document.
// The balance contract is a fixed, versioned schema; responses are walked
// by element name instead of being bound to generated types.
type Node struct {
	Name  string
	Value string
	Kids  []*Node
}

// UnmarshalXML builds the node tree recursively, dropping namespace
// prefixes so callers address elements by local name only.
func (n *Node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	n.Name = start.Name.Local

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child := &Node{}
			if err := child.UnmarshalXML(d, t); err != nil {
				return err
			}
			n.Kids = append(n.Kids, child)
		case xml.CharData:
			n.Value += string(t)
		case xml.EndElement:
			n.Value = strings.TrimSpace(n.Value)
			return nil
		}
	}
}

// Child returns the first child element with the given local name.
// Safe to call on a nil node, so lookups can be chained.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, kid := range n.Kids {
		if kid.Name == name {
			return kid
		}
	}
	return nil
}

// All returns every child element with the given local name.
func (n *Node) All(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, kid := range n.Kids {
		if kid.Name == name {
			out = append(out, kid)
		}
	}
	return out
}

// Has reports whether a child element with the given name exists.
func (n *Node) Has(name string) bool {
	return n.Child(name) != nil
}

// Text returns the character data of the node, or "" for a nil node.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return n.Value
}

// ChildText returns the character data of the named child, or "".
func (n *Node) ChildText(name string) string {
	return n.Child(name).Text()
}

// Float parses the named child as a float64.
func (n *Node) Float(name string) (float64, error) {
	c := n.Child(name)
	if c == nil {
		return 0, errors.Errorf("element %q not present", name)
	}
	v, err := strconv.ParseFloat(c.Value, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "element %q is not a number", name)
	}
	return v, nil
}

// Int parses the named child as an int64.
func (n *Node) Int(name string) (int64, error) {
	c := n.Child(name)
	if c == nil {
		return 0, errors.Errorf("element %q not present", name)
	}
	v, err := strconv.ParseInt(c.Value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "element %q is not an integer", name)
	}
	return v, nil
}

// Bool parses the named child as a boolean, defaulting to false when the
// element is absent or empty.
func (n *Node) Bool(name string) bool {
	c := n.Child(name)
	if c == nil || c.Value == "" {
		return false
	}
	v, err := strconv.ParseBool(strings.ToLower(c.Value))
	if err != nil {
		return false
	}
	return v
}
