package recipe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/viant/tasktree/extension"
	"github.com/viant/tasktree/internal/yml"
	"github.com/viant/tasktree/model/graph"
	"github.com/viant/tasktree/policy"
	"github.com/viant/tasktree/service/meta"
	"gopkg.in/yaml.v3"
)

// Service builds recipes from YAML documents.
type Service struct {
	metaService   *meta.Service
	factories     *extension.Factories
	parallelLimit int
}

// DecodeYAML decodes a recipe from YAML
func (s *Service) DecodeYAML(encoded []byte) (graph.Group, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(encoded, &node); err != nil {
		return graph.Group{}, err
	}
	return s.Parse("", &node)
}

// Load loads a recipe from YAML at the specified URL
func (s *Service) Load(ctx context.Context, URL string) (graph.Group, error) {
	if filepath.Ext(URL) == "" {
		URL += ".yaml"
	}
	var node yaml.Node
	if err := s.metaService.Load(ctx, URL, &node); err != nil {
		return graph.Group{}, fmt.Errorf("failed to load recipe from %s: %w", URL, err)
	}
	return s.Parse(URL, &node)
}

// Parse builds and validates the recipe held by node; the file name of URL
// names a recipe without a name.
func (s *Service) Parse(URL string, node *yaml.Node) (graph.Group, error) {
	root := (*yml.Node)(node).Root()
	if root.Kind != yaml.MappingNode {
		return graph.Group{}, fmt.Errorf("failed to parse recipe %s: expected mapping at %v", URL, root.Position())
	}
	var extra []graph.Item
	if root.Lookup("name") == nil {
		extra = append(extra, graph.Named(nameFromURL(URL)))
	}
	group, err := s.parseGroup(root, extra...)
	if err != nil {
		return graph.Group{}, fmt.Errorf("failed to parse recipe %s: %w", URL, err)
	}
	if issues := graph.Validate(group); len(issues) > 0 {
		return graph.Group{}, fmt.Errorf("invalid recipe %s: %w", URL, errors.Join(issues...))
	}
	return group, nil
}

func nameFromURL(URL string) string {
	if URL == "" {
		return generateAnonymousName()
	}
	base := filepath.Base(URL)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *Service) parseGroup(node *yml.Node, extra ...graph.Item) (graph.Group, error) {
	items := append([]graph.Item{}, extra...)
	hasLimit := false
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "name":
			items = append(items, graph.Named(valueNode.Value))
		case "policy":
			p, err := policy.Parse(valueNode.Value)
			if err != nil {
				return fmt.Errorf("%w at %v", err, valueNode.Position())
			}
			items = append(items, graph.Policy(p))
		case "parallellimit":
			hasLimit = true
			limit, err := parseLimit(valueNode)
			if err != nil {
				return err
			}
			items = append(items, graph.ParallelLimit(limit))
		case "loop":
			it, err := parseLoop(valueNode)
			if err != nil {
				return err
			}
			items = append(items, graph.Loop(it))
		case "tasks":
			if valueNode.Kind != yaml.SequenceNode {
				return fmt.Errorf("tasks should be a sequence at %v", valueNode.Position())
			}
			return valueNode.Items(func(index int, itemNode *yml.Node) error {
				item, err := s.parseItem(itemNode)
				if err != nil {
					return fmt.Errorf("tasks[%d]: %w", index, err)
				}
				items = append(items, item)
				return nil
			})
		default:
			return fmt.Errorf("unsupported group key %q at %v", key, valueNode.Position())
		}
		return nil
	})
	if err != nil {
		return graph.Group{}, err
	}
	if !hasLimit && s.parallelLimit > 0 {
		items = append(items, graph.ParallelLimit(s.parallelLimit))
	}
	return graph.NewGroup(items...), nil
}

// parseItem parses one entry of a tasks list: a factory task or a nested
// group, optionally inverted, logged or bounded by a timeout.
func (s *Service) parseItem(node *yml.Node) (graph.Executable, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping at %v", node.Position())
	}
	var (
		item     graph.Executable
		timeout  time.Duration
		logged   string
		negate   bool
		spec     = &extension.Spec{}
		factory  string
		groupDoc *yml.Node
	)
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "task":
			factory = valueNode.Value
		case "name":
			spec.Name = valueNode.Value
		case "input":
			spec.Input = (*yaml.Node)(valueNode)
		case "group":
			groupDoc = valueNode
		case "timeout":
			d, err := time.ParseDuration(valueNode.Value)
			if err != nil {
				return fmt.Errorf("invalid timeout %q at %v", valueNode.Value, valueNode.Position())
			}
			timeout = d
		case "log":
			logged = valueNode.Value
		case "not":
			flag, err := valueNode.Bool()
			if err != nil {
				return err
			}
			negate = flag
		default:
			return fmt.Errorf("unsupported task key %q at %v", key, valueNode.Position())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch {
	case factory != "" && groupDoc != nil:
		return nil, fmt.Errorf("task and group are exclusive at %v", node.Position())
	case factory != "":
		task, err := s.factories.New(factory, spec)
		if err != nil {
			return nil, fmt.Errorf("%w at %v", err, node.Position())
		}
		item = task
	case groupDoc != nil:
		if groupDoc.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("group should be a mapping at %v", groupDoc.Position())
		}
		var extra []graph.Item
		if spec.Name != "" && groupDoc.Lookup("name") == nil {
			extra = append(extra, graph.Named(spec.Name))
		}
		group, err := s.parseGroup(groupDoc, extra...)
		if err != nil {
			return nil, err
		}
		item = group
	default:
		return nil, fmt.Errorf("expected task or group at %v", node.Position())
	}
	if negate {
		item = graph.Not(item)
	}
	if timeout > 0 {
		item = graph.WithTimeout(item, timeout)
	}
	if logged != "" {
		item = graph.WithLog(item, logged)
	}
	return item, nil
}

func parseLimit(node *yml.Node) (int, error) {
	switch strings.ToLower(node.Value) {
	case "sequential":
		return 1, nil
	case "parallel", "unlimited":
		return 0, nil
	case "ideal":
		return graph.IdealThreadCount(), nil
	}
	return node.Int()
}

// parseLoop parses {repeat: n}, {forever: true} or {list: [...]}.
func parseLoop(node *yml.Node) (graph.Iterator, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return graph.Iterator{}, fmt.Errorf("loop should declare one of repeat, forever, list at %v", node.Position())
	}
	key, value := strings.ToLower(node.Content[0].Value), (*yml.Node)(node.Content[1])
	switch key {
	case "repeat":
		n, err := value.Int()
		if err != nil {
			return graph.Iterator{}, err
		}
		return graph.Repeat(n), nil
	case "forever":
		flag, err := value.Bool()
		if err != nil {
			return graph.Iterator{}, err
		}
		if !flag {
			return graph.Repeat(1), nil
		}
		return graph.Forever(), nil
	case "list":
		values, ok := value.Interface().([]interface{})
		if !ok {
			return graph.Iterator{}, fmt.Errorf("loop list should be a sequence at %v", value.Position())
		}
		return graph.List(values...), nil
	}
	return graph.Iterator{}, fmt.Errorf("unsupported loop %q at %v", key, node.Position())
}

// New creates a recipe service
func New(opts ...Option) *Service {
	ret := &Service{}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.metaService == nil {
		ret.metaService = meta.New(nil, "")
	}
	if ret.factories == nil {
		ret.factories = extension.Default()
	}
	return ret
}
