// Package validate checks generated dashboards and rules for PromQL syntax
// errors and references to metrics the service does not export.
package validate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/prometheus/promql/parser"

	"github.com/donaldgifford/flight-price-tracker/tools/dashgen/rules"
)

// Result collects validation findings.
type Result struct {
	Errors   []string
	Warnings []string
}

// Ok reports whether no errors were found.
func (r Result) Ok() bool { return len(r.Errors) == 0 }

func (r *Result) merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// histogramSuffixes are stripped before looking a selector up in the known set.
var histogramSuffixes = []string{"_bucket", "_sum", "_count"}

// Expr parses a PromQL expression and checks every vector selector against
// known. where prefixes each finding.
func Expr(where, expr string, known map[string]bool) Result {
	var res Result

	node, err := parser.ParseExpr(expr)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: invalid PromQL %q: %v", where, expr, err))
		return res
	}

	parser.Inspect(node, func(n parser.Node, _ []parser.Node) error {
		vs, ok := n.(*parser.VectorSelector)
		if !ok || vs.Name == "" {
			return nil
		}
		if !knownMetric(vs.Name, known) {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: unknown metric %q", where, vs.Name))
		}
		return nil
	})

	return res
}

func knownMetric(name string, known map[string]bool) bool {
	if known[name] {
		return true
	}
	for _, suffix := range histogramSuffixes {
		if base, ok := strings.CutSuffix(name, suffix); ok && known[base] {
			return true
		}
	}
	return false
}

// DashboardJSON validates every "expr" field found in a Grafana dashboard.
func DashboardJSON(data []byte, known map[string]bool) (Result, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Result{}, fmt.Errorf("decoding dashboard: %w", err)
	}

	var (
		res   Result
		exprs []string
	)
	collectExprs(doc, &exprs)
	if len(exprs) == 0 {
		res.Warnings = append(res.Warnings, "dashboard has no PromQL targets")
	}
	for i, e := range exprs {
		res.merge(Expr(fmt.Sprintf("dashboard target %d", i), e, known))
	}
	return res, nil
}

func collectExprs(v any, out *[]string) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := t[k].(string); ok && k == "expr" {
				*out = append(*out, s)
				continue
			}
			collectExprs(t[k], out)
		}
	case []any:
		for _, item := range t {
			collectExprs(item, out)
		}
	}
}

// Rules validates each rule in a PrometheusRule CR. Recording rule names are
// added to the known set so later rules may reference them.
func Rules(cr rules.PrometheusRule, known map[string]bool) Result {
	var res Result

	merged := make(map[string]bool, len(known))
	for k, v := range known {
		merged[k] = v
	}

	seen := make(map[string]bool)
	for _, g := range cr.Spec.Groups {
		if len(g.Rules) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("group %s has no rules", g.Name))
		}
		for _, r := range g.Rules {
			name := r.Record
			if name == "" {
				name = r.Alert
			}
			where := fmt.Sprintf("%s/%s", g.Name, name)

			switch {
			case name == "":
				res.Errors = append(res.Errors, fmt.Sprintf("%s: rule has neither record nor alert", g.Name))
				continue
			case r.Record != "" && r.Alert != "":
				res.Errors = append(res.Errors, where+": rule sets both record and alert")
			case seen[name]:
				res.Errors = append(res.Errors, where+": duplicate rule name")
			}
			seen[name] = true

			if r.Alert != "" && r.Annotations["summary"] == "" {
				res.Warnings = append(res.Warnings, where+": alert has no summary annotation")
			}

			res.merge(Expr(where, r.Expr, merged))
			if r.Record != "" {
				merged[r.Record] = true
			}
		}
	}
	return res
}
