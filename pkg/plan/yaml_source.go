package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// YAMLSource reads a plan table from YAML:
//
//	plans:
//	  starter:
//	    name: Starter
//	    limits: {customers: 100, workers: 3, products: 50, locations: 1}
//	    features: [queue_basic, inventory]
//	  enterprise:
//	    limits: {customers: unlimited, workers: unlimited, products: unlimited, locations: unlimited}
type YAMLSource struct {
	data []byte
}

// NewYAMLSource returns a Source over an in-memory YAML document.
func NewYAMLSource(data []byte) *YAMLSource {
	return &YAMLSource{data: bytes.Clone(data)}
}

// NewYAMLFileSource reads the YAML document at path.
func NewYAMLFileSource(path string) (*YAMLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return &YAMLSource{data: data}, nil
}

type yamlDocument struct {
	Plans map[string]yamlPlan `yaml:"plans"`
}

type yamlPlan struct {
	Name     string                `yaml:"name"`
	Limits   map[string]limitValue `yaml:"limits"`
	Features []string              `yaml:"features"`
}

// limitValue accepts either an integer or the word "unlimited".
type limitValue int64

func (v *limitValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d", ErrInvalidLimitValue, node.Line)
	}
	if node.Value == "unlimited" {
		*v = limitValue(Unlimited)
		return nil
	}
	n, err := strconv.ParseInt(node.Value, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q at line %d", ErrInvalidLimitValue, node.Value, node.Line)
	}
	*v = limitValue(n)
	return nil
}

// Load decodes the document. Unknown tiers or resources are rejected.
func (s *YAMLSource) Load(context.Context) (map[Type]Plan, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(s.data, &doc); err != nil {
		return nil, err
	}

	plans := make(map[Type]Plan, len(doc.Plans))
	for rawType, yp := range doc.Plans {
		t, ok := ParseType(rawType)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlanType, rawType)
		}

		p := Plan{
			Type:     t,
			Name:     yp.Name,
			Limits:   make(map[Resource]int64, len(yp.Limits)),
			Features: make([]Feature, 0, len(yp.Features)),
		}
		if p.Name == "" {
			p.Name = string(t)
		}
		for rawRes, limit := range yp.Limits {
			res, ok := ParseResource(rawRes)
			if !ok {
				return nil, fmt.Errorf("%w: %q in plan %s", ErrUnknownResource, rawRes, t)
			}
			p.Limits[res] = int64(limit)
		}
		for _, f := range yp.Features {
			p.Features = append(p.Features, Feature(f))
		}
		plans[t] = p
	}

	return plans, nil
}
