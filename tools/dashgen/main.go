// Package main generates the Grafana dashboard and Prometheus rule files for
// flight-price-tracker from Go definitions.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/flight-price-tracker/tools/dashgen/dashboards"
	"github.com/donaldgifford/flight-price-tracker/tools/dashgen/rules"
	"github.com/donaldgifford/flight-price-tracker/tools/dashgen/validate"
)

const generatedHeader = "# Code generated by tools/dashgen. DO NOT EDIT.\n"

func main() {
	validateOnly := flag.Bool("validate", false, "validate generated artifacts without writing files")
	outputDir := flag.String("output", "", "override output directory")
	flag.Parse()

	cfg := DefaultConfig()
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *validateOnly); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// artifact is one generated file relative to the output directory.
type artifact struct {
	path string
	data []byte
}

func run(cfg Config, validateOnly bool) error {
	artifacts, err := build(cfg)
	if err != nil {
		return err
	}

	if validateOnly {
		fmt.Println("validation passed")
		return nil
	}

	for _, a := range artifacts {
		dst := filepath.Join(cfg.OutputDir, a.path)
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, a.data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
		fmt.Printf("dashgen: wrote %s\n", dst)
	}
	return nil
}

// build generates and validates every enabled artifact.
func build(cfg Config) ([]artifact, error) {
	var (
		out  []artifact
		errs []string
	)

	if cfg.DashboardEnabled {
		dash, err := dashboards.BuildOverview().Build()
		if err != nil {
			return nil, fmt.Errorf("building dashboard: %w", err)
		}
		data, err := json.MarshalIndent(dash, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding dashboard: %w", err)
		}

		res, err := validate.DashboardJSON(data, KnownMetrics)
		if err != nil {
			return nil, err
		}
		errs = append(errs, res.Errors...)

		out = append(out, artifact{
			path: filepath.Join("grafana", "data", "fpt-overview.json"),
			data: append(data, '\n'),
		})
	}

	if cfg.RulesEnabled {
		for name, cr := range map[string]rules.PrometheusRule{
			"fpt-recording-rules.yaml": rules.RecordingRules(),
			"fpt-alerts.yaml":          rules.AlertRules(),
		} {
			errs = append(errs, validate.Rules(cr, KnownMetrics).Errors...)

			data, err := yaml.Marshal(cr)
			if err != nil {
				return nil, fmt.Errorf("encoding %s: %w", name, err)
			}
			out = append(out, artifact{
				path: filepath.Join("prometheus", name),
				data: append([]byte(generatedHeader), data...),
			})
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return out, nil
}
