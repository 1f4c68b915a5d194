// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package policy

import (
	"fmt"
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// FieldRef is a column reference extracted from a query. Table is the underlying
// table name with aliases resolved, or empty when the reference is unqualified.
// Star marks a "*" or "t.*" projection.
type FieldRef struct {
	Table  string
	Column string
	Star   bool
}

func (f FieldRef) String() string {
	col := f.Column
	if f.Star {
		col = "*"
	}
	if f.Table == "" {
		return col
	}
	return f.Table + "." + col
}

// Fields is the result of extracting field references from one query.
type Fields struct {
	Refs []FieldRef
	// Tables holds every relation referenced by the query, lower-cased.
	Tables []string
}

// ExtractFields parses q as PostgreSQL and returns every column it references.
// Column aliases are never reported: only the column they stand for is. Table
// aliases are resolved to the table they name.
func ExtractFields(q string) (Fields, error) {
	tree, err := pg_query.Parse(q)
	if err != nil {
		return Fields{}, err
	}
	if len(tree.GetStmts()) == 0 {
		return Fields{}, fmt.Errorf("no statement found")
	}

	// An alias may name different tables in different scopes of one statement,
	// so every table it names is kept.
	aliases := map[string]map[string]struct{}{}
	addAlias := func(name, rel string) {
		if aliases[name] == nil {
			aliases[name] = map[string]struct{}{}
		}
		aliases[name][rel] = struct{}{}
	}
	tables := map[string]struct{}{}
	var raw [][]*pg_query.Node

	for _, stmt := range tree.GetStmts() {
		walk(stmt.ProtoReflect(), func(m proto.Message) {
			switch n := m.(type) {
			case *pg_query.RangeVar:
				rel := strings.ToLower(n.GetRelname())
				tables[rel] = struct{}{}
				addAlias(rel, rel)
				if a := n.GetAlias().GetAliasname(); a != "" {
					addAlias(strings.ToLower(a), rel)
				}
			case *pg_query.ColumnRef:
				raw = append(raw, n.GetFields())
			}
		})
	}

	out := Fields{Tables: sortedKeys(tables)}
	for _, parts := range raw {
		out.Refs = append(out.Refs, columnRefs(parts, aliases)...)
	}
	return out, nil
}

// columnRefs converts ColumnRef fields (schema.table.column, table.column, column,
// or any of those ending in *) into one FieldRef per table the qualifier may name.
// A bare name that is a table or alias in scope is a whole-row reference and is
// reported as a star over that table.
func columnRefs(parts []*pg_query.Node, aliases map[string]map[string]struct{}) []FieldRef {
	if len(parts) == 0 {
		return nil
	}
	var ref FieldRef
	last := parts[len(parts)-1]
	if last.GetAStar() != nil {
		ref.Star = true
	} else if s := last.GetString_(); s != nil {
		ref.Column = strings.ToLower(s.GetSval())
	} else {
		return nil
	}

	if len(parts) == 1 {
		rels, ok := aliases[ref.Column]
		if ref.Star || !ok {
			return []FieldRef{ref}
		}
		var out []FieldRef
		for _, rel := range sortedKeys(rels) {
			out = append(out, FieldRef{Table: rel, Star: true})
		}
		return out
	}

	qual := strings.ToLower(parts[len(parts)-2].GetString_().GetSval())
	rels, ok := aliases[qual]
	if !ok {
		ref.Table = qual
		return []FieldRef{ref}
	}
	var out []FieldRef
	for _, rel := range sortedKeys(rels) {
		r := ref
		r.Table = rel
		out = append(out, r)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// walk visits m and every message reachable from it. pg_query nodes are protobuf
// messages, so reflection covers every statement shape without a per-node switch.
func walk(m protoreflect.Message, visit func(proto.Message)) {
	if !m.IsValid() {
		return
	}
	visit(m.Interface())
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsMap():
		case fd.IsList():
			if fd.Message() == nil {
				return true
			}
			l := v.List()
			for i := 0; i < l.Len(); i++ {
				walk(l.Get(i).Message(), visit)
			}
		case fd.Message() != nil:
			walk(v.Message(), visit)
		}
		return true
	})
}
