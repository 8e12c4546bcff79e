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

import "fmt"

// AggregationOp is how values written to the same output index of a
// contraction accumulate across iterations of the index space.
type AggregationOp int

// Aggregation operators.
const (
	AggNone AggregationOp = iota
	AggSum
	AggAssign
	AggMin
	AggMax
	AggProd
)

var aggNames = [...]string{"none", "sum", "assign", "min", "max", "prod"}

// String representation of the aggregation operator.
func (op AggregationOp) String() string {
	if op < 0 || int(op) >= len(aggNames) {
		return fmt.Sprintf("AggregationOp(%d)", int(op))
	}
	return aggNames[op]
}

// CombinationOp is how the input tensor specs of a contraction are combined
// before aggregation.
type CombinationOp int

// Combination operators.
const (
	ComboNone CombinationOp = iota
	ComboMultiply
	ComboPlus
	ComboEq
	ComboCond
)

var comboNames = [...]string{"none", "multiply", "plus", "eq", "cond"}

// String representation of the combination operator.
func (op CombinationOp) String() string {
	if op < 0 || int(op) >= len(comboNames) {
		return fmt.Sprintf("CombinationOp(%d)", int(op))
	}
	return comboNames[op]
}

func (op CombinationOp) separator() string {
	switch op {
	case ComboMultiply:
		return " * "
	case ComboPlus:
		return " + "
	case ComboEq:
		return " == "
	default:
		return ", "
	}
}
