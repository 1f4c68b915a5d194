// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package policy

import (
	"fmt"
	"sort"
	"strings"

	errs "seedfast/querygate/internal/errors"
)

// Verdict is the outcome of a validation or authorization call.
// Reason is empty when Allowed is true.
type Verdict struct {
	Allowed bool
	Reason  errs.Kind
	Detail  string
	// Required is the highest level among the referenced fields.
	Required Level
}

func allow(required Level) Verdict { return Verdict{Allowed: true, Required: required} }

func deny(reason errs.Kind, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

// Policy holds the read-only sensitivity table and denylist.
type Policy struct {
	sensitivity map[string]Level
	banned      []string
}

// Option customizes a Policy at construction time.
type Option func(*Policy)

// WithSensitivity merges entries into the sensitivity table. Keys are folded to lower case.
func WithSensitivity(table map[string]Level) Option {
	return func(p *Policy) {
		for k, v := range table {
			p.sensitivity[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
}

// WithBanned appends constructs to the denylist.
func WithBanned(phrases ...string) Option {
	return func(p *Policy) {
		for _, ph := range phrases {
			if ph = strings.ToLower(strings.TrimSpace(ph)); ph != "" {
				p.banned = append(p.banned, ph)
			}
		}
	}
}

// New builds a Policy from the defaults plus opts. The result is never mutated.
func New(opts ...Option) *Policy {
	p := &Policy{
		sensitivity: make(map[string]Level, len(DefaultSensitivity)),
		banned:      append([]string(nil), DefaultBanned...),
	}
	for k, v := range DefaultSensitivity {
		p.sensitivity[k] = v
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequiredLevel returns the level configured for a field name, "column" or
// "table.column". Unknown fields are public.
func (p *Policy) RequiredLevel(field string) Level {
	return p.sensitivity[strings.ToLower(strings.TrimSpace(field))]
}

// Banned returns a copy of the denylist.
func (p *Policy) Banned() []string {
	return append([]string(nil), p.banned...)
}

// Authorize allows iff caller is at least the highest level among the referenced fields.
func (p *Policy) Authorize(fields Fields, caller Level) Verdict {
	required, worst := Public, ""
	for _, ref := range fields.Refs {
		lvl, key := p.levelOf(ref, fields.Tables)
		if lvl > required {
			required, worst = lvl, key
		}
	}
	if caller >= required {
		return allow(required)
	}
	detail := fmt.Sprintf("query requires %s clearance, caller has %s", required, caller)
	if worst != "" {
		detail = fmt.Sprintf("field %q requires %s clearance, caller has %s", worst, required, caller)
	}
	v := deny(errs.InsufficientClearance, detail)
	v.Required = required
	return v
}

// Validate runs the banned-construct scan and then sensitivity authorization.
// A banned construct denies regardless of parse success or caller level.
func (p *Policy) Validate(q string, caller Level) Verdict {
	if phrase := scanBanned(q, p.banned); phrase != "" {
		return deny(errs.BannedConstruct, fmt.Sprintf("query contains banned construct %q", phrase))
	}
	fields, err := ExtractFields(q)
	if err != nil {
		return deny(errs.MalformedQuery, err.Error())
	}
	return p.Authorize(fields, caller)
}

// levelOf resolves the level a reference requires. Unqualified columns are checked
// against every in-scope table; a star covers every column of its scope.
func (p *Policy) levelOf(ref FieldRef, scope []string) (Level, string) {
	tables := scope
	if ref.Table != "" {
		tables = []string{ref.Table}
	}

	if ref.Star {
		return p.starLevel(tables)
	}

	best, key := p.sensitivity[ref.Column], ref.Column
	for _, t := range tables {
		q := t + "." + ref.Column
		if lvl, ok := p.sensitivity[q]; ok && lvl > best {
			best, key = lvl, q
		}
	}
	return best, key
}

func (p *Policy) starLevel(tables []string) (Level, string) {
	in := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		in[t] = struct{}{}
	}
	keys := make([]string, 0, len(p.sensitivity))
	for k := range p.sensitivity {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, key := Public, ""
	for _, k := range keys {
		if tbl, _, qualified := strings.Cut(k, "."); qualified {
			if _, ok := in[tbl]; !ok {
				continue
			}
		}
		if lvl := p.sensitivity[k]; lvl > best {
			best, key = lvl, k
		}
	}
	return best, key
}
