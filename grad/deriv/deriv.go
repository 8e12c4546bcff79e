// Copyright 2025 Google LLC
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

// Package deriv provides the derivative rules of the elementary functions.
//
// A Registry maps function names to grad.Rule values. New returns a registry
// pre-populated with the standard rules; callers extend it with Register
// before injecting it into a differentiation session.
package deriv

import (
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"github.com/einlang/ein/grad"
)

// Registry resolves derivative rules by function name.
type Registry struct {
	rules map[string]grad.Rule
}

var _ grad.Registry = (*Registry)(nil)

// New returns a registry populated with the rules of the elementary
// functions.
func New() *Registry {
	r := &Registry{rules: make(map[string]grad.Rule)}
	for name, rule := range map[string]grad.Rule{
		"add":   addRule,
		"sub":   subRule,
		"mul":   mulRule,
		"div":   divRule,
		"neg":   negRule,
		"exp":   expRule,
		"log":   logRule,
		"sqrt":  sqrtRule,
		"tanh":  tanhRule,
		"ident": identRule,
	} {
		r.Register(name, rule)
	}
	return r
}

// Register adds the rule of a function, replacing any previous rule
// registered under the same name.
func (r *Registry) Register(name string, rule grad.Rule) {
	r.rules[name] = rule
}

// Resolve returns the rule registered for a function name.
func (r *Registry) Resolve(name string) (grad.Rule, error) {
	rule, ok := r.rules[name]
	if !ok {
		return nil, errors.Errorf("no derivative rule registered for function %q", name)
	}
	return rule, nil
}

// Names returns the names of all the registered functions, sorted.
func (r *Registry) Names() []string {
	names := maps.Keys(r.rules)
	sort.Strings(names)
	return names
}
