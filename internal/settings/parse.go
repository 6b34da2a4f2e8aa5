package settings

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrUnsafeYAML is returned for documents using anchors, aliases or
// custom tags.
var ErrUnsafeYAML = errors.New("unsupported yaml construct")

var allowedTags = map[string]bool{
	"!!str":   true,
	"!!int":   true,
	"!!float": true,
	"!!bool":  true,
	"!!null":  true,
	"!!map":   true,
	"!!seq":   true,
}

// Parse decodes a settings document. Only plain scalars, maps and
// sequences are accepted. Missing values are filled from Defaults.
func Parse(data []byte) (*Settings, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	s := Defaults()
	if root.Kind == 0 {
		return s, nil
	}

	if err := checkNode(&root); err != nil {
		return nil, err
	}

	if err := root.Decode(s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.normalize()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func checkNode(n *yaml.Node) error {
	if n.Kind == yaml.AliasNode {
		return fmt.Errorf("%w: alias at line %d", ErrUnsafeYAML, n.Line)
	}
	if n.Anchor != "" {
		return fmt.Errorf("%w: anchor &%s at line %d", ErrUnsafeYAML, n.Anchor, n.Line)
	}
	if n.Kind != yaml.DocumentNode {
		if tag := n.ShortTag(); !allowedTags[tag] {
			return fmt.Errorf("%w: tag %s at line %d", ErrUnsafeYAML, tag, n.Line)
		}
	}
	for _, child := range n.Content {
		if err := checkNode(child); err != nil {
			return err
		}
	}
	return nil
}
