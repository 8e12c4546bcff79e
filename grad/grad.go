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

// Package grad differentiates expression graphs.
//
// Given a scalar loss node, the package builds the use index of the forward
// graph (which consumer uses which node, and at which argument position) and
// runs reverse-mode accumulation over it: the gradient of the loss with
// respect to a node is the sum of the contributions flowing back through
// each of its uses. The result is new graph nodes; nothing is evaluated
// numerically.
//
// A differentiation session owns its use index and its memo: nothing is
// shared across sessions and there is no global state. Derivative rules for
// elementwise functions are injected through the Registry interface; the
// standard rules live in the deriv sub-package.
package grad

import (
	"fmt"

	"github.com/einlang/ein/build/ir"
)

// ComputeGradients returns, for each node of wrt in order, a node computing
// the gradient of loss with respect to it.
//
// A loss of nonzero rank is first wrapped in an implicit sum over all of its
// axes so that the differentiation root is always a scalar. Any failure
// aborts the whole session: no partial result is returned.
func ComputeGradients(reg Registry, wrt []ir.Expr, loss ir.Expr) ([]ir.Expr, error) {
	root := loss
	if rank := loss.Shape().Rank(); rank > 0 {
		idx := make([]ir.IndexExpr, rank)
		for i := range idx {
			idx[i] = &ir.IndexVar{Name: fmt.Sprintf("i%d", i)}
		}
		cion := &ir.Contraction{
			AggOp:   ir.AggSum,
			ComboOp: ir.ComboNone,
			Inputs:  []*ir.TensorSpec{{Ref: loss, Index: idx}},
			Output:  &ir.OutSpec{},
		}
		if err := cion.ComputeShape(""); err != nil {
			return nil, err
		}
		root = cion
	}
	g := newGradient(reg, root)
	res := make([]ir.Expr, len(wrt))
	for i, x := range wrt {
		d, err := g.derivative(x)
		if err != nil {
			return nil, err
		}
		res[i] = d
	}
	return res, nil
}
