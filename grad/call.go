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

package grad

import (
	"github.com/einlang/ein/build/fmterr"
	"github.com/einlang/ein/build/ir"
)

type (
	// Rule computes the derivative contributions of a call node: given the
	// call and the downstream gradient of its output, it returns one
	// derivative node per argument, in argument order.
	Rule func(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error)

	// Registry resolves the derivative rule of a function by name. It is
	// injected into the differentiation session: the engine keeps no global
	// registration state.
	Registry interface {
		// Resolve returns the rule registered for a function name, or an
		// error naming the function if none is.
		Resolve(name string) (Rule, error)
	}
)

// callOp computes the contribution of a call consumer to the derivative of
// its idx-th argument, given the downstream gradient dout.
func (g *gradient) callOp(dout ir.Expr, op *ir.Call, idx int) (ir.Expr, error) {
	switch op.Fn {
	case "tuple", "element", "reshape":
		// Structural functions do not have a derivative rule yet.
		return nil, fmterr.NotImplementedf("derivative of %s", op.Fn)
	}
	rule, err := g.reg.Resolve(op.Fn)
	if err != nil {
		return nil, err
	}
	derivs, err := rule(op, dout, op.Args)
	if err != nil {
		return nil, err
	}
	if len(derivs) != len(op.Args) {
		return nil, fmterr.Internalf("rule for %s returned %d derivatives for %d arguments", op.Fn, len(derivs), len(op.Args))
	}
	return derivs[idx], nil
}
