// Copyright 2023 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bp holds an abstract representation of Android.bp modules and
// writes them out in a form that bpfmt accepts.
package bp

import (
	"sort"
	"strings"
)

// A Value is one property value: a bool, a string, a list, or a nested
// property object.
type Value interface {
	emit(w *strings.Builder)
}

type Bool bool

type String string

type List []Value

// Strings builds a List of string values.
func Strings(ss ...string) List {
	l := make(List, 0, len(ss))
	for _, s := range ss {
		l = append(l, String(s))
	}
	return l
}

func (b Bool) emit(w *strings.Builder) {
	if b {
		w.WriteString("true")
	} else {
		w.WriteString("false")
	}
}

func (s String) emit(w *strings.Builder) {
	w.WriteString("\"")
	w.WriteString(string(s))
	w.WriteString("\"")
}

func (l List) emit(w *strings.Builder) {
	w.WriteString("[")
	for i, v := range l {
		v.emit(w)
		if i != len(l)-1 {
			w.WriteString(", ")
		}
	}
	w.WriteString("]")
}

// Properties maps property names to values. Emission order is not
// insertion order: properties are written in the canonical rank order,
// and properties without a rank follow alphabetically.
type Properties struct {
	values map[string]Value
}

// The order bpfmt and humans expect properties in. Properties not listed
// here sort after all listed ones, alphabetically.
var canonicalOrder = []string{
	"name",
	"defaults",
	"stem",
	"host_supported",
	"prefer_rlib",
	"crate_name",
	"cargo_env_compat",
	"cargo_pkg_version",
	"srcs",
	"test_suites",
	"auto_gen_config",
	"test_options",
	"edition",
	"features",
	"rustlibs",
	"proc_macros",
	"static_libs",
	"shared_libs",
	"arch",
	"target",
	"ld_flags",
	"apex_available",
}

var canonicalRank = func() map[string]int {
	m := make(map[string]int, len(canonicalOrder))
	for i, k := range canonicalOrder {
		m[k] = i
	}
	return m
}()

func (p *Properties) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	p.values[key] = v
}

func (p *Properties) Delete(key string) {
	delete(p.values, key)
}

func (p *Properties) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

func (p *Properties) Len() int {
	return len(p.values)
}

// Get returns the value stored for key, or nil.
func (p *Properties) Get(key string) Value {
	return p.values[key]
}

// GetString returns the string stored for key, or "" if the key is absent
// or holds a non-string value.
func (p *Properties) GetString(key string) string {
	if s, ok := p.values[key].(String); ok {
		return string(s)
	}
	return ""
}

// Object returns the nested property object stored for key, creating it
// if the key is absent.
func (p *Properties) Object(key string) *Properties {
	if v, ok := p.values[key]; ok {
		if o, ok := v.(*Properties); ok {
			return o
		}
	}
	o := &Properties{}
	p.Set(key, o)
	return o
}

// Keys returns the property names in emission order.
func (p *Properties) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func rank(key string) int {
	if r, ok := canonicalRank[key]; ok {
		return r
	}
	return len(canonicalOrder)
}

func (p *Properties) emit(w *strings.Builder) {
	p.emitWithTail(w, "")
}

func (p *Properties) emitWithTail(w *strings.Builder, raw string) {
	w.WriteString("{\n")
	for _, k := range p.Keys() {
		w.WriteString(k)
		w.WriteString(": ")
		p.values[k].emit(w)
		w.WriteString(",\n")
	}
	if raw != "" {
		w.WriteString(raw)
		w.WriteString(",\n")
	}
	w.WriteString("}")
}

// A Module is one Android.bp module definition.
type Module struct {
	Type  string
	Props Properties

	// RawBlock is opaque text emitted verbatim before the module's
	// closing brace.
	RawBlock string
}

func NewModule(moduleType string) *Module {
	return &Module{Type: moduleType}
}

// Name returns the module's name property.
func (m *Module) Name() string {
	return m.Props.GetString("name")
}

// AppendToSrcs adds an entry to the module's srcs list, creating the list
// if needed.
func (m *Module) AppendToSrcs(src string) {
	if l, ok := m.Props.Get("srcs").(List); ok {
		m.Props.Set("srcs", append(l, String(src)))
	} else {
		m.Props.Set("srcs", Strings(src))
	}
}

// String renders the module. The output is valid blueprint but makes no
// attempt at pretty indentation; bpfmt owns the final layout.
func (m *Module) String() string {
	var w strings.Builder
	w.WriteString(m.Type)
	w.WriteString(" ")
	m.Props.emitWithTail(&w, m.RawBlock)
	w.WriteString("\n")
	return w.String()
}

// Equal reports whether two values render identically.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	var wa, wb strings.Builder
	a.emit(&wa)
	b.emit(&wb)
	return wa.String() == wb.String()
}
