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

package grad_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/einlang/ein/build/fmterr"
	"github.com/einlang/ein/build/ir"
	"github.com/einlang/ein/grad"
	"github.com/einlang/ein/grad/deriv"
)

func tensor(name string, dims ...int) *ir.Param {
	return ir.NewParam(name, &ir.Shape{
		Shape:  shape.Shape{DType: dtype.Float32, AxisLengths: dims},
		Layout: "dense",
	})
}

func scalar(name string) *ir.Param {
	return tensor(name)
}

func call(t *testing.T, fn string, args ...ir.Expr) *ir.Call {
	t.Helper()
	c, err := ir.NewCall(fn, args...)
	if err != nil {
		t.Fatalf("NewCall(%s): %v", fn, err)
	}
	return c
}

func contraction(t *testing.T, agg ir.AggregationOp, combo ir.CombinationOp, inputs []*ir.TensorSpec, out *ir.OutSpec, layout string) *ir.Contraction {
	t.Helper()
	cion := &ir.Contraction{
		AggOp:   agg,
		ComboOp: combo,
		Inputs:  inputs,
		Output:  out,
	}
	if err := cion.ComputeShape(layout); err != nil {
		t.Fatalf("ComputeShape: %v", err)
	}
	return cion
}

// matmul builds O[i, j] = sum over k of A[i, k]*B[k, j].
func matmul(t *testing.T, a, b ir.Expr) *ir.Contraction {
	t.Helper()
	i, j, k := &ir.IndexVar{Name: "i"}, &ir.IndexVar{Name: "j"}, &ir.IndexVar{Name: "k"}
	return contraction(t, ir.AggSum, ir.ComboMultiply,
		[]*ir.TensorSpec{
			{Ref: a, Index: []ir.IndexExpr{i, k}},
			{Ref: b, Index: []ir.IndexExpr{k, j}},
		},
		&ir.OutSpec{
			Index: []ir.IndexExpr{i, j},
			Dims: []*ir.DimExpr{
				ir.NewDimExpr(int64(a.Shape().AxisLengths[0])),
				ir.NewDimExpr(int64(b.Shape().AxisLengths[1])),
			},
		},
		a.Shape().Layout)
}

func sameIndex(t *testing.T, desc string, got, want []ir.IndexExpr) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s: got %d index expressions but want %d", desc, len(got), len(want))
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s: index expression %d is not the original instance", desc, i)
		}
	}
}

// reduced unwraps the shape reconciliation call wrapping a derivative and
// checks it reduces against wrt.
func reduced(t *testing.T, d ir.Expr, wrt ir.Expr) ir.Expr {
	t.Helper()
	red, ok := d.(*ir.Call)
	if !ok || red.Fn != ir.SimpleReduceFn {
		t.Fatalf("derivative is %s but want a %s call", d, ir.SimpleReduceFn)
	}
	if red.Args[1] != wrt {
		t.Errorf("%s does not reduce against the differentiated node", red)
	}
	return red.Args[0]
}

func TestSeedDerivative(t *testing.T) {
	x := scalar("x")
	grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{x}, x)
	if err != nil {
		t.Fatalf("ComputeGradients: %v", err)
	}
	seed, ok := grads[0].(*ir.FloatConst)
	if !ok || seed.Value != 1 {
		t.Errorf("derivative of the root is %s but want 1", grads[0])
	}
}

func TestMemoization(t *testing.T) {
	x := scalar("x")
	loss := call(t, "mul", x, x)
	grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{x, x}, loss)
	if err != nil {
		t.Fatalf("ComputeGradients: %v", err)
	}
	if grads[0] != grads[1] {
		t.Errorf("two queries of the same node returned distinct instances:\n%s\n%s", grads[0], grads[1])
	}
	sum, ok := grads[0].(*ir.Call)
	if !ok || sum.Fn != "add" {
		t.Fatalf("derivative is %s but want the sum of both use contributions", grads[0])
	}
	for i, arg := range sum.Args {
		contrib, ok := arg.(*ir.Call)
		if !ok || contrib.Fn != "mul" {
			t.Errorf("contribution %d is %s but want a mul call", i, arg)
		}
	}
}

func TestMultiplyContraction(t *testing.T) {
	a, b := tensor("A", 2, 3), tensor("B", 3, 4)
	out := matmul(t, a, b)
	grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{a, b}, out)
	if err != nil {
		t.Fatalf("ComputeGradients: %v", err)
	}

	da, ok := reduced(t, grads[0], a).(*ir.Contraction)
	if !ok {
		t.Fatalf("derivative of A is not a contraction: %s", grads[0])
	}
	if da.AggOp != ir.AggSum || da.ComboOp != ir.ComboMultiply {
		t.Errorf("derivative of A aggregates with %s/%s but want sum/multiply", da.AggOp, da.ComboOp)
	}
	if len(da.Inputs) != 2 {
		t.Fatalf("derivative of A has %d inputs but want 2", len(da.Inputs))
	}
	// The downstream gradient is reindexed into the output index spec and the
	// other input is kept verbatim.
	sameIndex(t, "dA downstream gradient", da.Inputs[0].Index, out.Output.Index)
	if da.Inputs[1] != out.Inputs[1] {
		t.Errorf("derivative of A does not keep the B spec verbatim")
	}
	sameIndex(t, "dA output", da.Output.Index, out.Inputs[0].Index)
	if diff := cmp.Diff(a.Shape().AxisLengths, grads[0].Shape().AxisLengths); diff != "" {
		t.Errorf("derivative of A shape mismatch (-want +got):\n%s", diff)
	}

	// The derivative with respect to B is symmetric: A is the retained factor.
	db, ok := reduced(t, grads[1], b).(*ir.Contraction)
	if !ok {
		t.Fatalf("derivative of B is not a contraction: %s", grads[1])
	}
	if db.ComboOp != ir.ComboMultiply {
		t.Errorf("derivative of B combines with %s but want multiply", db.ComboOp)
	}
	if db.Inputs[0] != out.Inputs[0] {
		t.Errorf("derivative of B does not keep the A spec verbatim")
	}
	sameIndex(t, "dB downstream gradient", db.Inputs[1].Index, out.Output.Index)
	sameIndex(t, "dB output", db.Output.Index, out.Inputs[1].Index)
	if diff := cmp.Diff(b.Shape().AxisLengths, grads[1].Shape().AxisLengths); diff != "" {
		t.Errorf("derivative of B shape mismatch (-want +got):\n%s", diff)
	}
}

func TestPlusContraction(t *testing.T) {
	a, b := tensor("A", 4), tensor("B", 4)
	i := &ir.IndexVar{Name: "i"}
	out := contraction(t, ir.AggSum, ir.ComboPlus,
		[]*ir.TensorSpec{
			{Ref: a, Index: []ir.IndexExpr{i}},
			{Ref: b, Index: []ir.IndexExpr{i}},
		},
		&ir.OutSpec{Index: []ir.IndexExpr{i}, Dims: []*ir.DimExpr{ir.NewDimExpr(4)}},
		"dense")
	grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{a, b}, out)
	if err != nil {
		t.Fatalf("ComputeGradients: %v", err)
	}
	for gi, wrt := range []ir.Expr{a, b} {
		d, ok := reduced(t, grads[gi], wrt).(*ir.Contraction)
		if !ok {
			t.Fatalf("derivative %d is not a contraction: %s", gi, grads[gi])
		}
		if d.ComboOp != ir.ComboNone {
			t.Errorf("derivative %d combines with %s but want none", gi, d.ComboOp)
		}
		// The other input must not appear in the derivative.
		if len(d.Inputs) != 1 {
			t.Fatalf("derivative %d has %d inputs but want 1", gi, len(d.Inputs))
		}
		if ref := d.Inputs[0].Ref; ref == a || ref == b {
			t.Errorf("derivative %d kept a forward input as a factor: %s", gi, d)
		}
	}
}

func TestExtremeContraction(t *testing.T) {
	a := tensor("A", 2, 3)
	i, k := &ir.IndexVar{Name: "i"}, &ir.IndexVar{Name: "k"}
	for _, agg := range []ir.AggregationOp{ir.AggMin, ir.AggMax} {
		out := contraction(t, agg, ir.ComboNone,
			[]*ir.TensorSpec{{Ref: a, Index: []ir.IndexExpr{i, k}}},
			&ir.OutSpec{Index: []ir.IndexExpr{i}, Dims: []*ir.DimExpr{ir.NewDimExpr(2)}},
			"dense")
		grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{a}, out)
		if err != nil {
			t.Fatalf("%s: ComputeGradients: %v", agg, err)
		}
		da, ok := reduced(t, grads[0], a).(*ir.Contraction)
		if !ok {
			t.Fatalf("%s: derivative is not a contraction: %s", agg, grads[0])
		}
		if da.AggOp != ir.AggSum || da.ComboOp != ir.ComboCond {
			t.Errorf("%s: derivative aggregates with %s/%s but want sum/cond", agg, da.AggOp, da.ComboOp)
		}
		if len(da.Inputs) != 3 {
			t.Fatalf("%s: derivative has %d inputs but want 3", agg, len(da.Inputs))
		}
		if da.Inputs[0] != out.Inputs[0] {
			t.Errorf("%s: condition input is not the original input spec", agg)
		}
		if da.Inputs[1].Ref != out {
			t.Errorf("%s: comparison input is not the forward output", agg)
		}
		sameIndex(t, "comparison index", da.Inputs[1].Index, out.Output.Index)
		sameIndex(t, "gradient index", da.Inputs[2].Index, out.Output.Index)
		sameIndex(t, "output index", da.Output.Index, out.Inputs[0].Index)
		if diff := cmp.Diff(a.Shape().AxisLengths, grads[0].Shape().AxisLengths); diff != "" {
			t.Errorf("%s: derivative shape mismatch (-want +got):\n%s", agg, diff)
		}
	}
}

func TestDefaultValue(t *testing.T) {
	a := tensor("A", 4)
	d := scalar("d")
	i := &ir.IndexVar{Name: "i"}
	// The derivative of the default slot is the downstream gradient whatever
	// the aggregation operator.
	for _, agg := range []ir.AggregationOp{ir.AggSum, ir.AggMin} {
		out := &ir.Contraction{
			AggOp:      agg,
			ComboOp:    ir.ComboNone,
			Inputs:     []*ir.TensorSpec{{Ref: a, Index: []ir.IndexExpr{i}}},
			Output:     &ir.OutSpec{},
			UseDefault: d,
		}
		if err := out.ComputeShape(""); err != nil {
			t.Fatalf("ComputeShape: %v", err)
		}
		grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{d}, out)
		if err != nil {
			t.Fatalf("%s: ComputeGradients: %v", agg, err)
		}
		dd, ok := grads[0].(*ir.FloatConst)
		if !ok || dd.Value != 1 {
			t.Errorf("%s: derivative of the default is %s but want the downstream gradient 1", agg, grads[0])
		}
	}
}

func TestEqCombination(t *testing.T) {
	a, b := tensor("A", 4), tensor("B", 4)
	i := &ir.IndexVar{Name: "i"}
	out := contraction(t, ir.AggSum, ir.ComboEq,
		[]*ir.TensorSpec{
			{Ref: a, Index: []ir.IndexExpr{i}},
			{Ref: b, Index: []ir.IndexExpr{i}},
		},
		&ir.OutSpec{},
		"dense")
	grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{a}, out)
	if err != nil {
		t.Fatalf("ComputeGradients: %v", err)
	}
	zero, ok := grads[0].(*ir.IntConst)
	if !ok || zero.Value != 0 {
		t.Errorf("derivative through an equality is %s but want the integer 0", grads[0])
	}
}

func TestProdUnsupported(t *testing.T) {
	a := tensor("A", 4)
	i := &ir.IndexVar{Name: "i"}
	out := contraction(t, ir.AggProd, ir.ComboNone,
		[]*ir.TensorSpec{{Ref: a, Index: []ir.IndexExpr{i}}},
		&ir.OutSpec{},
		"dense")
	grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{a}, out)
	if err == nil {
		t.Fatalf("got gradients %v but want an error", grads)
	}
	if !fmterr.IsUnsupported(err) {
		t.Errorf("error %v is not reported as unsupported", err)
	}
	if grads != nil {
		t.Errorf("got partial gradients %v but want none", grads)
	}
}

func TestCondCombinationUnsupported(t *testing.T) {
	a, b, c := tensor("A", 4), tensor("B", 4), tensor("C", 4)
	i := &ir.IndexVar{Name: "i"}
	out := contraction(t, ir.AggSum, ir.ComboCond,
		[]*ir.TensorSpec{
			{Ref: a, Index: []ir.IndexExpr{i}},
			{Ref: b, Index: []ir.IndexExpr{i}},
			{Ref: c, Index: []ir.IndexExpr{i}},
		},
		&ir.OutSpec{},
		"dense")
	_, err := grad.ComputeGradients(deriv.New(), []ir.Expr{a}, out)
	if !fmterr.IsUnsupported(err) {
		t.Errorf("error %v is not reported as unsupported", err)
	}
}

func TestStructuralCallsNotImplemented(t *testing.T) {
	for _, fn := range []string{"tuple", "element", "reshape"} {
		x := scalar("x")
		_, err := grad.ComputeGradients(deriv.New(), []ir.Expr{x}, call(t, fn, x))
		if err == nil {
			t.Errorf("differentiating through %s: want an error", fn)
			continue
		}
		if !fmterr.IsNotImplemented(err) {
			t.Errorf("differentiating through %s: error %v is not reported as not implemented", fn, err)
		}
		if fmterr.IsInternal(err) {
			t.Errorf("differentiating through %s: error %v wrongly reported as a bug", fn, err)
		}
	}
}

func TestUnknownFunction(t *testing.T) {
	x := scalar("x")
	_, err := grad.ComputeGradients(deriv.New(), []ir.Expr{x}, call(t, "sigmoid", x))
	if err == nil {
		t.Fatalf("differentiating through an unregistered function: want an error")
	}
	if !strings.Contains(err.Error(), "sigmoid") {
		t.Errorf("error %q does not name the function", err.Error())
	}
}

func TestNonScalarLoss(t *testing.T) {
	a, b := tensor("A", 4, 3), tensor("B", 3, 4)
	loss := matmul(t, a, b) // Shape [4, 4]: the engine must wrap it itself.
	grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{a, b}, loss)
	if err != nil {
		t.Fatalf("ComputeGradients: %v", err)
	}
	for gi, wrt := range []ir.Expr{a, b} {
		if diff := cmp.Diff(wrt.Shape().AxisLengths, grads[gi].Shape().AxisLengths); diff != "" {
			t.Errorf("gradient %d shape mismatch (-want +got):\n%s", gi, diff)
		}
	}
}

func TestSharedNodeSumsContributions(t *testing.T) {
	x := scalar("x")
	loss := call(t, "add", call(t, "exp", x), call(t, "log", x))
	grads, err := grad.ComputeGradients(deriv.New(), []ir.Expr{x}, loss)
	if err != nil {
		t.Fatalf("ComputeGradients: %v", err)
	}
	sum, ok := grads[0].(*ir.Call)
	if !ok || sum.Fn != "add" {
		t.Fatalf("derivative of a node with two consumers is %s but want a sum", grads[0])
	}
	// The traversal expands the last argument of the loss first, so the log
	// contribution is discovered, and summed, before the exp one.
	left, ok := sum.Args[0].(*ir.Call)
	if !ok || left.Fn != "div" {
		t.Errorf("log contribution is %s but want a div call", sum.Args[0])
	}
	right, ok := sum.Args[1].(*ir.Call)
	if !ok || right.Fn != "mul" {
		t.Errorf("exp contribution is %s but want a mul call", sum.Args[1])
	}
}
