package yml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func parse(t *testing.T, text string) *Node {
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(text), &node))
	return (*Node)(&node).Root()
}

func TestNode_Interface(t *testing.T) {
	testCases := []struct {
		description string
		text        string
		expect      interface{}
	}{
		{description: "string", text: "abc", expect: "abc"},
		{description: "int", text: "12", expect: 12},
		{description: "hex int", text: "0x10", expect: 16},
		{description: "float", text: "1.5", expect: 1.5},
		{description: "bool", text: "true", expect: true},
		{description: "null", text: "~", expect: nil},
		{description: "map", text: "a: 1\nb: [x, 2]", expect: map[string]interface{}{"a": 1, "b": []interface{}{"x", 2}}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, parse(t, testCase.text).Interface())
		})
	}
}

func TestNode_Lookup(t *testing.T) {
	node := parse(t, "Name: build\nparallelLimit: 2\nflag: yes-please")
	require.NotNil(t, node.Lookup("name"))
	assert.Equal(t, "build", node.Lookup("NAME").Value)
	assert.Nil(t, node.Lookup("missing"))

	limit, err := node.Lookup("parallellimit").Int()
	require.NoError(t, err)
	assert.Equal(t, 2, limit)

	_, err = node.Lookup("flag").Bool()
	assert.Error(t, err)
	_, err = node.Lookup("name").Int()
	assert.Error(t, err)

	var keys []string
	require.NoError(t, node.Pairs(func(key string, _ *Node) error {
		keys = append(keys, key)
		return nil
	}))
	assert.Equal(t, []string{"Name", "parallelLimit", "flag"}, keys)
}
