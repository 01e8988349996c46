// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// DynamicValue is the placeholder value of a dynamic namespace element.
const DynamicValue = "*"

// NamespaceElement is one segment of a metric namespace.
// A dynamic element has a Name and the value "*" until it is collected.
type NamespaceElement struct {
	Value       string `json:"value"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsDynamic reports whether the element is a named (dynamic) element.
func (e NamespaceElement) IsDynamic() bool {
	return e.Name != ""
}

// Namespace identifies a metric.
type Namespace []NamespaceElement

// NewNamespace builds a namespace of static elements.
func NewNamespace(values ...string) Namespace {
	ns := make(Namespace, 0, len(values))
	for _, v := range values {
		ns = append(ns, NamespaceElement{Value: v})
	}
	return ns
}

// AddStaticElement appends a static element and returns the namespace.
func (ns Namespace) AddStaticElement(value string) Namespace {
	return append(ns, NamespaceElement{Value: value})
}

// AddDynamicElement appends a dynamic element and returns the namespace.
func (ns Namespace) AddDynamicElement(name, description string) Namespace {
	return append(ns, NamespaceElement{Value: DynamicValue, Name: name, Description: description})
}

// Strings returns the element values.
func (ns Namespace) Strings() []string {
	out := make([]string, len(ns))
	for i, e := range ns {
		out[i] = e.Value
	}
	return out
}

// String renders the namespace as a slash-separated path ("/a/b/c").
func (ns Namespace) String() string {
	return "/" + strings.Join(ns.Strings(), "/")
}

// Key renders the namespace as a dotted key ("a.b.c").
func (ns Namespace) Key() string {
	return strings.Join(ns.Strings(), ".")
}

// IsDynamic reports whether any element is dynamic.
func (ns Namespace) IsDynamic() bool {
	for _, e := range ns {
		if e.IsDynamic() {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the backing array.
func (ns Namespace) Clone() Namespace {
	if ns == nil {
		return nil
	}
	return append(Namespace(nil), ns...)
}

// Matches reports whether the namespace matches a glob pattern over its
// slash-separated form. "*" matches within one element, "**" across elements.
func (ns Namespace) Matches(pattern string) (bool, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return false, oops.Code("INVALID_PATTERN").With("pattern", pattern).Wrap(err)
	}
	return g.Match(ns.String()), nil
}
