// Package table is the schema-driven flattening engine: it compiles
// field selection rules against an Avram schema, plans the output
// columns for a conversion run, and flattens parsed MARC records into
// rows that match the plan.
//
// Example usage:
//
//	rules, err := table.ParseRules([]string{"245a", "650a"}, sch)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	plan, err := table.Plan(sch, rules)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	row := table.Flatten(record, plan)
package table

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bibutil/marctab/schema"
)

// ErrInvalidRule is returned when a selection rule token cannot be
// compiled against the schema.
var ErrInvalidRule = errors.New("invalid rule")

// Rule selects a field, and optionally a subset of its subfields, for
// extraction. An empty Codes list selects the whole field.
type Rule struct {
	Tag   string
	Codes []string
}

func (r Rule) String() string {
	return r.Tag + strings.Join(r.Codes, "")
}

// ParseRules compiles rule tokens like "245", "245a", or "260ac" into
// validated rules. A token is a 3-character tag followed by zero or more
// single-character subfield codes. Rule order is preserved and duplicate
// tokens are kept; repeated codes within one token collapse to the first
// occurrence.
//
// Errors wrap ErrInvalidRule and name the offending token: tokens
// shorter than a tag, tags not in the schema, and codes not declared
// for their tag all fail.
func ParseRules(tokens []string, s *schema.Schema) ([]Rule, error) {
	rules := make([]Rule, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) < 3 {
			return nil, fmt.Errorf("%w: %q is shorter than a 3-character tag", ErrInvalidRule, tok)
		}
		tag := tok[:3]
		field, ok := s.Lookup(tag)
		if !ok {
			return nil, fmt.Errorf("%w: %q: tag %s is not defined in the schema", ErrInvalidRule, tok, tag)
		}

		rule := Rule{Tag: tag}
		seen := make(map[string]bool)
		for _, c := range strings.Split(tok[3:], "") {
			if _, ok := field.Subfield(c); !ok {
				return nil, fmt.Errorf("%w: %q: subfield %s is not declared for field %s", ErrInvalidRule, tok, c, tag)
			}
			if seen[c] {
				continue
			}
			seen[c] = true
			rule.Codes = append(rule.Codes, c)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
