package config

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/jmagar/glances-mcp/schemas"
)

const configSchemaPath = "config/v1.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := schemas.FS.ReadFile(configSchemaPath)
		if err != nil {
			schemaErr = fmt.Errorf("read embedded schema: %w", err)
			return
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			schemaErr = fmt.Errorf("parse embedded schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(configSchemaPath, doc); err != nil {
			schemaErr = fmt.Errorf("register schema: %w", err)
			return
		}

		compiledSchema, schemaErr = compiler.Compile(configSchemaPath)
	})
	return compiledSchema, schemaErr
}

// validateSchema checks raw YAML bytes against the embedded config schema.
func validateSchema(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("config schema validation: %w", err)
	}
	return nil
}

// validateSemantics applies checks the JSON schema cannot express:
// cross-field consistency and referential integrity.
func validateSemantics(cfg *Config) error {
	var problems []string

	seen := make(map[string]struct{}, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if _, dup := seen[s.Alias]; dup {
			problems = append(problems, fmt.Sprintf("duplicate server alias %q", s.Alias))
		}
		seen[s.Alias] = struct{}{}
	}

	for _, r := range cfg.AlertRules {
		cmp := r.Thresholds.Comparison
		switch cmp {
		case "", ComparisonGT:
			if r.Thresholds.Critical < r.Thresholds.Warning {
				problems = append(problems, fmt.Sprintf(
					"rule %q: critical threshold %.2f below warning %.2f for gt comparison",
					r.Name, r.Thresholds.Critical, r.Thresholds.Warning))
			}
		case ComparisonLT:
			if r.Thresholds.Critical > r.Thresholds.Warning {
				problems = append(problems, fmt.Sprintf(
					"rule %q: critical threshold %.2f above warning %.2f for lt comparison",
					r.Name, r.Thresholds.Critical, r.Thresholds.Warning))
			}
		case ComparisonEQ:
			// Any pair is permitted; eq is meant for discrete metrics.
		default:
			problems = append(problems, fmt.Sprintf("rule %q: unknown comparison %q", r.Name, cmp))
		}

		for _, alias := range r.ServerFilter {
			if _, ok := seen[alias]; !ok {
				problems = append(problems, fmt.Sprintf(
					"rule %q: server_filter references unknown alias %q", r.Name, alias))
			}
		}
	}

	for _, w := range cfg.MaintenanceWindows {
		if w.EndTime < w.StartTime {
			problems = append(problems, fmt.Sprintf(
				"maintenance window %q: end_time %s before start_time %s",
				w.Name, w.EndTime, w.StartTime))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
