// Package outputter renders one-shot results to a configurable sink.
package outputter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"sigs.k8s.io/yaml"
)

type Outputter func(ctx context.Context, w io.Writer, v any) error

// JSON encodes the value as indented JSON.
func JSON(ctx context.Context, w io.Writer, v any) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// MinJSON encodes the value as minimized JSON.
func MinJSON(ctx context.Context, w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// YAML encodes the value as YAML via its JSON form.
func YAML(ctx context.Context, w io.Writer, v any) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	yamlBytes, err := yaml.JSONToYAML(jsonBytes)
	if err != nil {
		return err
	}
	_, err = w.Write(yamlBytes)
	return err
}

// Log emits the value as a structured log record instead of writing to
// the sink.
func Log(ctx context.Context, w io.Writer, v any) error {
	log.Ctx(ctx).Info().Any("result", v).Msg("scrap complete")
	return nil
}

// ByName selects an outputter by name or returns an error.
func ByName(name string) (Outputter, error) {
	switch name {
	case "json":
		return JSON, nil
	case "min-json":
		return MinJSON, nil
	case "yaml":
		return YAML, nil
	case "log":
		return Log, nil
	default:
		return nil, fmt.Errorf("unknown output formatter: %q", name)
	}
}
