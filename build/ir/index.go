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
	"strconv"
	"strings"
)

// ----------------------------------------------------------------------------
// Index expressions. They describe how the axes of a tensor map into the
// iteration space of a contraction. The gradient rules copy them verbatim
// and never interpret them.
type (
	// IndexExpr is a polynomial over the iteration indices of a contraction.
	IndexExpr interface {
		// indexExpr marks a structure as an index expression.
		indexExpr()

		// String representation of the index expression.
		String() string
	}

	// IndexVar is a named iteration index.
	IndexVar struct {
		Name string
	}

	// IndexLit is an integer literal in an index polynomial.
	IndexLit struct {
		Value int64
	}

	// IndexBinary is an affine combination of two index expressions.
	IndexBinary struct {
		Op string
		X  IndexExpr
		Y  IndexExpr
	}
)

var (
	_ IndexExpr = (*IndexVar)(nil)
	_ IndexExpr = (*IndexLit)(nil)
	_ IndexExpr = (*IndexBinary)(nil)
)

func (*IndexVar) indexExpr() {}

// String representation of the index variable.
func (x *IndexVar) String() string { return x.Name }

func (*IndexLit) indexExpr() {}

// String representation of the index literal.
func (x *IndexLit) String() string { return strconv.FormatInt(x.Value, 10) }

func (*IndexBinary) indexExpr() {}

// String representation of the affine combination.
func (x *IndexBinary) String() string {
	return fmt.Sprintf("%s%s%s", x.X, x.Op, x.Y)
}

// Constraint bounds an index polynomial to the half-open range [0, Range).
type Constraint struct {
	Poly  IndexExpr
	Range *DimExpr
}

// String representation of the constraint.
func (c *Constraint) String() string {
	return fmt.Sprintf("%s < %s", c.Poly, c.Range)
}

func indexString(idx []IndexExpr) string {
	ss := make([]string, len(idx))
	for i, x := range idx {
		ss[i] = x.String()
	}
	return strings.Join(ss, ", ")
}
