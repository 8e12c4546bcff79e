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
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
)

type (
	// TensorSpec pairs an input tensor with the index expressions mapping
	// its axes into the iteration space of a contraction.
	TensorSpec struct {
		Ref   Expr
		Index []IndexExpr
	}

	// OutSpec describes the output of a contraction: the index expressions
	// locating where a value is written and the lengths of the output axes.
	OutSpec struct {
		Index []IndexExpr
		Dims  []*DimExpr
	}

	// Contraction is an Einstein-summation style reduction: the index space
	// is iterated, the inputs are combined by ComboOp and the combined values
	// written to the same output index accumulate with AggOp. Output
	// positions never written receive UseDefault when it is set.
	Contraction struct {
		AggOp       AggregationOp
		ComboOp     CombinationOp
		Inputs      []*TensorSpec
		Output      *OutSpec
		Constraints []*Constraint
		UseDefault  Expr

		shape Shape
	}
)

var _ Expr = (*Contraction)(nil)

// String representation of the tensor spec.
func (s *TensorSpec) String() string {
	return fmt.Sprintf("%s[%s]", s.Ref, indexString(s.Index))
}

func (*Contraction) node() {}

// Shape returns the computed output shape of the contraction.
func (c *Contraction) Shape() *Shape { return &c.shape }

// DefaultSlot returns the argument index under which the default value node
// is recorded: one past the last input.
func (c *Contraction) DefaultSlot() int { return len(c.Inputs) }

// ComputeShape computes the output shape of the contraction from its output
// spec and tags it with a layout. Must be called once the inputs and the
// output spec are set, before the node is consumed.
func (c *Contraction) ComputeShape(layout string) error {
	if c.Output == nil {
		return errors.Errorf("contraction has no output spec")
	}
	dims := make([]int, len(c.Output.Dims))
	for i, dim := range c.Output.Dims {
		if dim == nil {
			return errors.Errorf("contraction output axis %d has no length", i)
		}
		dims[i] = int(dim.Value)
	}
	dt := dtype.Float64
	if len(c.Inputs) > 0 && c.Inputs[0].Ref != nil {
		dt = c.Inputs[0].Ref.Shape().DType
	}
	c.shape = Shape{
		Shape:  shape.Shape{DType: dt, AxisLengths: dims},
		Layout: layout,
	}
	return nil
}

// String representation of the contraction.
func (c *Contraction) String() string {
	inputs := make([]string, len(c.Inputs))
	for i, in := range c.Inputs {
		inputs[i] = in.String()
	}
	var out string
	if c.Output != nil {
		out = indexString(c.Output.Index)
	}
	s := fmt.Sprintf("%s[%s](%s)", c.AggOp, out, strings.Join(inputs, c.ComboOp.separator()))
	if c.UseDefault != nil {
		s += fmt.Sprintf(" default %s", c.UseDefault)
	}
	return s
}
