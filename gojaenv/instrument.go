// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaenv

import (
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

const (
	probeName = "__jsenv_probe__"
	evalParam = "__jsenv_expr__"
)

type instrumented struct {
	source string
	// lines holds the zero-based lines on which a statement starts.
	lines map[int]bool
}

var (
	statementsType = reflect.TypeFor[[]ast.Statement]()
	astPkgPath     = reflect.TypeFor[ast.Program]().PkgPath()
)

// instrument splices a probe call ahead of every statement of src that is an
// element of a statement list, without adding lines. Each probe passes the
// engine id, the script index, the zero-based line, whether the statement is a debugger
// statement, and a function evaluating an expression in the statement's
// scope.
func instrument(src string, engineID uint64, scriptIndex int) (*instrumented, error) {
	prg, err := goja.Parse("", src, parser.WithDisableSourceMaps)
	if err != nil {
		return nil, err
	}

	w := &walker{
		points:  make(map[int]bool),
		bodies:  make(map[*ast.BlockStatement]bool),
		visited: make(map[any]bool),
	}
	w.statements(prg.Body, true)

	offsets := make([]int, 0, len(w.points))
	for off := range w.points {
		offsets = append(offsets, off)
	}
	slices.Sort(offsets)

	out := &instrumented{lines: make(map[int]bool, len(offsets))}
	var (
		b    strings.Builder
		prev int
		line int
	)
	b.Grow(len(src) + len(offsets)*72)
	prefix := probeName + "(" + strconv.FormatUint(engineID, 10) + "," + strconv.Itoa(scriptIndex) + ","
	for _, off := range offsets {
		at := statementStart(src, off, prev)
		line += strings.Count(src[prev:at], "\n")
		b.WriteString(src[prev:at])
		prev = at
		out.lines[line] = true

		b.WriteString(prefix)
		b.WriteString(strconv.Itoa(line))
		if w.points[off] {
			b.WriteString(",1,(")
		} else {
			b.WriteString(",0,(")
		}
		b.WriteString(evalParam)
		b.WriteString(")=>eval(")
		b.WriteString(evalParam)
		b.WriteString("));")
	}
	b.WriteString(src[prev:])
	out.source = b.String()
	return out, nil
}

// statementStart moves off back over any opening parentheses that precede
// it, since the reported start of a parenthesized expression statement is
// that of its inner expression. It never moves before limit.
func statementStart(src string, off, limit int) int {
	at := off
	for i := off - 1; i >= limit; i-- {
		switch src[i] {
		case '(':
			at = i
		case ' ', '\t', '\n', '\r':
		default:
			return at
		}
	}
	return at
}

type walker struct {
	// points maps statement offsets to whether the statement is a debugger
	// statement
	points  map[int]bool
	bodies  map[*ast.BlockStatement]bool
	visited map[any]bool
}

func (w *walker) statements(list []ast.Statement, directives bool) {
	for _, stmt := range list {
		if directives {
			if s, ok := stmt.(*ast.ExpressionStatement); ok {
				if _, ok := s.Expression.(*ast.StringLiteral); ok {
					continue
				}
			}
			directives = false
		}
		_, debugger := stmt.(*ast.DebuggerStatement)
		off := int(stmt.Idx0()) - 1
		w.points[off] = w.points[off] || debugger
		w.walk(reflect.ValueOf(stmt))
	}
}

func (w *walker) walk(v reflect.Value) {
	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			w.walk(v.Elem())
		}

	case reflect.Pointer:
		if v.IsNil() || v.Type().Elem().PkgPath() != astPkgPath {
			return
		}
		node := v.Interface()
		if w.visited[node] {
			return
		}
		w.visited[node] = true
		switch n := node.(type) {
		case *ast.FunctionLiteral:
			if n.Body != nil {
				w.bodies[n.Body] = true
			}
		case *ast.ArrowFunctionLiteral:
			if body, ok := n.Body.(*ast.BlockStatement); ok {
				w.bodies[body] = true
			}
		case *ast.BlockStatement:
			w.statements(n.List, w.bodies[n])
			return
		}
		w.walk(v.Elem())

	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			f := v.Field(i)
			if f.Type() == statementsType {
				w.statements(f.Interface().([]ast.Statement), false)
				continue
			}
			w.walk(f)
		}

	case reflect.Slice:
		for i := range v.Len() {
			w.walk(v.Index(i))
		}
	}
}
