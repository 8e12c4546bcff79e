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

// Package ir is the ein expression Intermediate Representation (IR).
//
// A forward computation is a directed acyclic graph of tensor operations:
// elementwise function calls and Einstein-summation style contractions.
// A node may be referenced by any number of consumers; node identity is
// pointer identity, never structural equality.
//
// Every node kind knows how to compute its own output shape from its inputs.
// The shape of a node built by a constructor is inferred at construction
// time; nodes built by struct literal must have their shape computed before
// the node is consumed.
package ir

import (
	"strconv"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
)

// ----------------------------------------------------------------------------
// Nodes of the graph.
type (
	// Expr is a node of the expression graph.
	Expr interface {
		// node marks a structure as a node structure.
		// It prevents external implementations of the interface.
		node()

		// Shape returns the inferred output shape of the node.
		Shape() *Shape

		// String representation of the node.
		String() string
	}
)

// ----------------------------------------------------------------------------
// Terminal nodes. They have no inputs: a gradient walk stops there.

// FloatConst is a floating-point scalar literal.
type FloatConst struct {
	Value float64

	shape Shape
}

var _ Expr = (*FloatConst)(nil)

// NewFloatConst returns a new floating-point scalar literal.
func NewFloatConst(value float64) *FloatConst {
	return &FloatConst{
		Value: value,
		shape: Shape{Shape: shape.Shape{DType: dtype.Float64}},
	}
}

func (*FloatConst) node() {}

// Shape of the literal: a scalar.
func (c *FloatConst) Shape() *Shape { return &c.shape }

// String representation of the literal.
func (c *FloatConst) String() string {
	return strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// IntConst is an integer scalar literal.
type IntConst struct {
	Value int64

	shape Shape
}

var _ Expr = (*IntConst)(nil)

// NewIntConst returns a new integer scalar literal.
func NewIntConst(value int64) *IntConst {
	return &IntConst{
		Value: value,
		shape: Shape{Shape: shape.Shape{DType: dtype.Int64}},
	}
}

func (*IntConst) node() {}

// Shape of the literal: a scalar.
func (c *IntConst) Shape() *Shape { return &c.shape }

// String representation of the literal.
func (c *IntConst) String() string {
	return strconv.FormatInt(c.Value, 10)
}

// Param is an opaque tensor leaf, for example a trainable input.
type Param struct {
	Name string

	shape Shape
}

var _ Expr = (*Param)(nil)

// NewParam returns a new parameter node of a given shape.
func NewParam(name string, sh *Shape) *Param {
	return &Param{Name: name, shape: *sh.clone()}
}

func (*Param) node() {}

// Shape of the parameter.
func (p *Param) Shape() *Shape { return &p.shape }

// String representation of the parameter: its name.
func (p *Param) String() string { return p.Name }

// DimExpr is a scalar integer node used only in shape computations,
// typically the length of an axis.
type DimExpr struct {
	Value int64

	shape Shape
}

var _ Expr = (*DimExpr)(nil)

// NewDimExpr returns a new dimension expression node.
func NewDimExpr(value int64) *DimExpr {
	return &DimExpr{
		Value: value,
		shape: Shape{Shape: shape.Shape{DType: dtype.Int64}},
	}
}

func (*DimExpr) node() {}

// Shape of the dimension expression: a scalar.
func (d *DimExpr) Shape() *Shape { return &d.shape }

// String representation of the dimension expression.
func (d *DimExpr) String() string {
	return strconv.FormatInt(d.Value, 10)
}
