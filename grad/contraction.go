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

// contractionOp computes the contribution of a contraction consumer to the
// derivative of its idx-th input, given the downstream gradient dout.
func (g *gradient) contractionOp(dout ir.Expr, op *ir.Contraction, idx int) (ir.Expr, error) {
	if op.UseDefault != nil && idx == op.DefaultSlot() {
		return g.defaultOp(dout, op)
	}
	if op.ComboOp == ir.ComboEq {
		// An equality test is locally flat.
		return ir.NewIntConst(0), nil
	}
	switch op.AggOp {
	case ir.AggSum, ir.AggAssign:
		return g.sumOp(dout, op, idx)
	case ir.AggMin, ir.AggMax:
		return g.extremeOp(dout, op, idx)
	case ir.AggProd:
		return nil, fmterr.Unsupportedf("%s aggregation does not support differentiation", op.AggOp)
	}
	return nil, fmterr.Internalf("invalid contraction %s", op)
}

// sumOp differentiates a SUM or ASSIGN aggregation. The downstream gradient
// is reindexed into the differentiated input's own index spec; the other
// inputs are kept as multiplicative factors or dropped, depending on the
// combination operator of the forward contraction.
func (g *gradient) sumOp(dout ir.Expr, op *ir.Contraction, idx int) (ir.Expr, error) {
	if idx == op.DefaultSlot() {
		return nil, fmterr.Internalf("a default value node fell through to the sum rule")
	}
	dop := &ir.Contraction{
		AggOp:       ir.AggSum,
		ComboOp:     ir.ComboNone,
		Constraints: op.Constraints,
	}
	// Anywhere the forward pass hits the default, the derivative with respect
	// to any other tensor is 0: the gradient keeps the standard unspecified
	// default, which is everywhere zero.
	for i, in := range op.Inputs {
		if i == idx {
			dop.Inputs = append(dop.Inputs, &ir.TensorSpec{Ref: dout, Index: op.Output.Index})
			continue
		}
		switch op.ComboOp {
		case ir.ComboMultiply:
			// The other input stays as a multiplicative factor.
			dop.Inputs = append(dop.Inputs, in)
			dop.ComboOp = ir.ComboMultiply
		case ir.ComboPlus:
			// The other input does not influence this one.
			dop.ComboOp = ir.ComboNone
		case ir.ComboCond:
			return nil, fmterr.Unsupportedf("differentiating a sum of conditionals")
		case ir.ComboEq:
			return nil, fmterr.Unsupportedf("differentiating a sum of equalities")
		case ir.ComboNone:
			return nil, fmterr.Internalf("multiple inputs in a contraction with no combination operator")
		default:
			return nil, fmterr.Internalf("unknown combination operator %s", op.ComboOp)
		}
	}
	in := op.Inputs[idx]
	dop.Output = &ir.OutSpec{Index: in.Index, Dims: in.Ref.Shape().DimsAsExprs()}
	if err := dop.ComputeShape(in.Ref.Shape().Layout); err != nil {
		return nil, err
	}
	return dop, nil
}

// extremeOp differentiates a MIN or MAX aggregation, which always has a
// single input. The derivative flows to exactly the input positions whose
// value equals the forward output at the corresponding output index; every
// tied position receives the full downstream gradient.
func (g *gradient) extremeOp(dout ir.Expr, op *ir.Contraction, idx int) (ir.Expr, error) {
	in := op.Inputs[0]
	dop := &ir.Contraction{
		AggOp:       ir.AggSum,
		ComboOp:     ir.ComboCond,
		Constraints: op.Constraints,
		Inputs: []*ir.TensorSpec{
			in,
			{Ref: op, Index: op.Output.Index},
			{Ref: dout, Index: op.Output.Index},
		},
		Output: &ir.OutSpec{Index: in.Index, Dims: in.Ref.Shape().DimsAsExprs()},
	}
	if err := dop.ComputeShape(in.Ref.Shape().Layout); err != nil {
		return nil, err
	}
	return dop, nil
}

// defaultOp differentiates the default value slot: the default is copied
// verbatim to untouched output positions, so its local gradient is the
// identity.
func (g *gradient) defaultOp(dout ir.Expr, op *ir.Contraction) (ir.Expr, error) {
	return dout, nil
}
