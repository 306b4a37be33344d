package yml

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	Node yaml.Node
)

// Root returns the first content node of a document, or n itself.
func (n *Node) Root() *Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return (*Node)(n.Content[0])
	}
	return n
}

// Lookup returns the value of a mapping key, matched case-insensitively.
func (n *Node) Lookup(name string) *Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if strings.EqualFold(n.Content[i].Value, name) {
			return (*Node)(n.Content[i+1])
		}
	}
	return nil
}

func (n *Node) Items(callback func(index int, node *Node) error) error {
	for i := 0; i < len(n.Content); i++ {
		value := n.Content[i]
		nodeValue := (*Node)(value)
		if err := callback(i, nodeValue); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) Pairs(callback func(key string, node *Node) error) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		value := n.Content[i+1]
		nodeValue := (*Node)(value)
		if err := callback(key, nodeValue); err != nil {
			return err
		}
	}
	return nil
}

// Position formats the node location for error messages.
func (n *Node) Position() string {
	return fmt.Sprintf("line %d, column %d", n.Line, n.Column)
}

// Int returns the scalar as an int.
func (n *Node) Int() (int, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("expected integer at %v", n.Position())
	}
	value, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q at %v", n.Value, n.Position())
	}
	return value, nil
}

// Bool returns the scalar as a bool.
func (n *Node) Bool() (bool, error) {
	if n.Kind != yaml.ScalarNode {
		return false, fmt.Errorf("expected boolean at %v", n.Position())
	}
	value, err := strconv.ParseBool(n.Value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q at %v", n.Value, n.Position())
	}
	return value, nil
}

func (n *Node) Interface() interface{} {
	switch n.Kind {
	case yaml.DocumentNode:
		return n.Root().Interface()
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!str":
			return n.Value
		case "!!bool":
			return parseBool(n.Value)
		case "!!null":
			return nil
		case "!!float":
			return parseFloat(n.Value)
		case "!!int":
			return parseInt(n.Value)
		default:
			return n.Value
		}
	case yaml.MappingNode:
		var aMap = make(map[string]interface{})
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			value := (*Node)(n.Content[i+1])
			aMap[key] = value.Interface()
		}
		return aMap
	case yaml.SequenceNode:
		var aSlice = make([]interface{}, 0)
		for i := 0; i < len(n.Content); i++ {
			value := (*Node)(n.Content[i])
			aSlice = append(aSlice, value.Interface())
		}
		return aSlice
	case yaml.AliasNode:
		if n.Alias != nil {
			return (*Node)(n.Alias).Interface()
		}
	}
	return nil
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true"
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(value string) int {
	i, err := strconv.ParseInt(value, 0, 64)
	if err != nil {
		return 0
	}
	return int(i)
}
