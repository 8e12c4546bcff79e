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

// gradient computes, for any node of the graph, the derivative of the root
// with respect to that node. Derivatives are memoized by node identity: a
// shared sub-expression is differentiated exactly once regardless of its
// fan-out, and querying it again returns the same node instance.
type gradient struct {
	reg  Registry
	uses *useIndex
	memo map[ir.Expr]ir.Expr
}

// newGradient returns an engine for the graph rooted at root, seeded with
// derivative(root) = 1.
func newGradient(reg Registry, root ir.Expr) *gradient {
	g := &gradient{
		reg:  reg,
		uses: computeUses(root),
		memo: make(map[ir.Expr]ir.Expr),
	}
	g.memo[root] = ir.NewFloatConst(1)
	return g
}

// derivative returns the derivative of the root with respect to expr.
//
// The engine walks consumers, not producers: the derivative of a node is the
// sum of the contributions flowing back through each of its use edges. The
// walk uses an explicit stack so the longest use chain of the graph does not
// bound the native call stack: a node whose consumer derivatives are not
// resolved yet stays on the stack below them and is folded once they are.
func (g *gradient) derivative(expr ir.Expr) (ir.Expr, error) {
	if d, ok := g.memo[expr]; ok {
		return d, nil
	}
	stack := []ir.Expr{expr}
	pending := make(map[ir.Expr]bool)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		if _, ok := g.memo[node]; ok {
			stack = stack[:len(stack)-1]
			continue
		}
		uses, err := g.uses.of(node)
		if err != nil {
			return nil, err
		}
		var missing []ir.Expr
		for _, u := range uses {
			if _, ok := g.memo[u.expr]; !ok {
				missing = append(missing, u.expr)
			}
		}
		if len(missing) > 0 {
			if pending[node] {
				return nil, fmterr.Internalf("use cycle detected at %s", node)
			}
			pending[node] = true
			stack = append(stack, missing...)
			continue
		}
		d, err := g.fold(node, uses)
		if err != nil {
			return nil, err
		}
		g.memo[node] = d
		delete(pending, node)
		stack = stack[:len(stack)-1]
	}
	return g.memo[expr], nil
}

// fold sums the backward contribution of every use of a node. A node with no
// use differentiates to the zero constant. A summed result that still has a
// nonzero rank was produced in a broadcast space relative to the node: it is
// reduced back against the node's own shape.
func (g *gradient) fold(expr ir.Expr, uses []use) (ir.Expr, error) {
	var total ir.Expr
	for _, u := range uses {
		dout := g.memo[u.expr]
		var contrib ir.Expr
		var err error
		switch consumer := u.expr.(type) {
		case *ir.Call:
			contrib, err = g.callOp(dout, consumer, u.idx)
		case *ir.Contraction:
			contrib, err = g.contractionOp(dout, consumer, u.idx)
		default:
			err = fmterr.Internalf("cannot differentiate through %T: not an operation node", u.expr)
		}
		if err != nil {
			return nil, err
		}
		if total == nil {
			total = contrib
			continue
		}
		if total, err = ir.NewCall("add", total, contrib); err != nil {
			return nil, err
		}
	}
	if total == nil {
		return ir.NewFloatConst(0), nil
	}
	if total.Shape().Rank() > 0 {
		return ir.NewCall(ir.SimpleReduceFn, total, expr)
	}
	return total, nil
}
