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

package ir

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Validate walks the graph once from root and reports every structural
// violation it finds. A shared node is checked only once.
func Validate(root Expr) error {
	var errs error
	stack := []Expr{root}
	seen := map[Expr]bool{root: true}
	push := func(x Expr) {
		if x == nil || seen[x] {
			return
		}
		seen[x] = true
		stack = append(stack, x)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch node := cur.(type) {
		case *Call:
			for i, arg := range node.Args {
				if arg == nil {
					errs = multierr.Append(errs, errors.Errorf("call %s: argument %d is nil", node.Fn, i))
					continue
				}
				push(arg)
			}
		case *Contraction:
			errs = multierr.Append(errs, node.validate())
			for _, in := range node.Inputs {
				if in != nil {
					push(in.Ref)
				}
			}
			push(node.UseDefault)
		case *FloatConst, *IntConst, *Param, *DimExpr:
			// Terminal nodes have nothing to check.
		}
	}
	return errs
}

func (c *Contraction) validate() error {
	var errs error
	if len(c.Inputs) == 0 {
		return errors.Errorf("contraction %s has no input", c)
	}
	switch c.ComboOp {
	case ComboNone:
		if len(c.Inputs) > 1 {
			errs = multierr.Append(errs, errors.Errorf("contraction combines %d inputs without a combination operator", len(c.Inputs)))
		}
	case ComboMultiply, ComboPlus:
		if len(c.Inputs) < 2 {
			errs = multierr.Append(errs, errors.Errorf("%s combination needs at least 2 inputs but got %d", c.ComboOp, len(c.Inputs)))
		}
	case ComboEq:
		if len(c.Inputs) != 2 {
			errs = multierr.Append(errs, errors.Errorf("%s combination needs 2 inputs but got %d", c.ComboOp, len(c.Inputs)))
		}
	case ComboCond:
		if len(c.Inputs) != 3 {
			errs = multierr.Append(errs, errors.Errorf("%s combination needs 3 inputs but got %d", c.ComboOp, len(c.Inputs)))
		}
	}
	for i, in := range c.Inputs {
		if in == nil || in.Ref == nil {
			errs = multierr.Append(errs, errors.Errorf("contraction input %d has no tensor", i))
			continue
		}
		if rank := in.Ref.Shape().Rank(); len(in.Index) != rank {
			errs = multierr.Append(errs, errors.Errorf("contraction input %d maps %d index expressions onto a rank %d tensor", i, len(in.Index), rank))
		}
	}
	if c.Output == nil {
		errs = multierr.Append(errs, errors.Errorf("contraction has no output spec"))
	}
	return errs
}
