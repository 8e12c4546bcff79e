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
	"github.com/einlang/ein/base/ordered"
	"github.com/einlang/ein/build/fmterr"
	"github.com/einlang/ein/build/ir"
)

// use records that a node appears as the idx-th input of a consumer node.
// For a contraction, idx is either an input position or, for the default
// value node, one past the last input.
type use struct {
	expr ir.Expr
	idx  int
}

// useIndex inverts the forward graph: for every node reachable from the
// differentiation root, it records the consumers the node is an input of.
// The root is recorded with no uses.
type useIndex struct {
	uses *ordered.Map[ir.Expr, []use]
}

// computeUses builds the use index of the graph rooted at root.
//
// The traversal is iterative so deep graphs do not grow the native call
// stack. Nodes are keyed by identity: a node reachable through several paths
// is expanded once, with one use recorded per path.
func computeUses(root ir.Expr) *useIndex {
	idx := &useIndex{uses: ordered.NewMap[ir.Expr, []use]()}
	idx.uses.Store(root, nil)
	stack := []ir.Expr{root}
	seen := make(map[ir.Expr]bool)
	for len(stack) > 0 {
		expr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[expr] {
			continue
		}
		seen[expr] = true
		switch node := expr.(type) {
		case *ir.Call:
			for i, arg := range node.Args {
				stack = idx.push(stack, node, arg, i)
			}
		case *ir.Contraction:
			for i, in := range node.Inputs {
				stack = idx.push(stack, node, in.Ref, i)
			}
			if node.UseDefault != nil {
				stack = idx.push(stack, node, node.UseDefault, node.DefaultSlot())
			}
		case *ir.FloatConst, *ir.IntConst, *ir.Param, *ir.DimExpr:
			// Terminal nodes have no inputs to record.
		}
	}
	return idx
}

func (idx *useIndex) push(stack []ir.Expr, user, used ir.Expr, i int) []ir.Expr {
	uses, _ := idx.uses.Load(used)
	idx.uses.Store(used, append(uses, use{expr: user, idx: i}))
	return append(stack, used)
}

// of returns the uses of a node, in the order the traversal discovered them.
// Querying a node never reached from the root is an internal error.
func (idx *useIndex) of(expr ir.Expr) ([]use, error) {
	uses, ok := idx.uses.Load(expr)
	if !ok {
		return nil, fmterr.Internalf("node %s is not reachable from the differentiation root", expr)
	}
	return uses, nil
}
