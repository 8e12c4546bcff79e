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

package deriv

import (
	"github.com/pkg/errors"
	"github.com/einlang/ein/build/ir"
)

func checkArity(op *ir.Call, args []ir.Expr, want int) error {
	if len(args) != want {
		return errors.Errorf("%s expects %d arguments but got %d", op.Fn, want, len(args))
	}
	return nil
}

func addRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 2); err != nil {
		return nil, err
	}
	return []ir.Expr{dout, dout}, nil
}

func subRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 2); err != nil {
		return nil, err
	}
	dy, err := ir.NewCall("neg", dout)
	if err != nil {
		return nil, err
	}
	return []ir.Expr{dout, dy}, nil
}

func mulRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 2); err != nil {
		return nil, err
	}
	dx, err := ir.NewCall("mul", dout, args[1])
	if err != nil {
		return nil, err
	}
	dy, err := ir.NewCall("mul", dout, args[0])
	if err != nil {
		return nil, err
	}
	return []ir.Expr{dx, dy}, nil
}

func divRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 2); err != nil {
		return nil, err
	}
	dx, err := ir.NewCall("div", dout, args[1])
	if err != nil {
		return nil, err
	}
	// d(x/y)/dy = -dout*x/(y*y).
	num, err := ir.NewCall("mul", dout, args[0])
	if err != nil {
		return nil, err
	}
	den, err := ir.NewCall("mul", args[1], args[1])
	if err != nil {
		return nil, err
	}
	quot, err := ir.NewCall("div", num, den)
	if err != nil {
		return nil, err
	}
	dy, err := ir.NewCall("neg", quot)
	if err != nil {
		return nil, err
	}
	return []ir.Expr{dx, dy}, nil
}

func negRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	dx, err := ir.NewCall("neg", dout)
	if err != nil {
		return nil, err
	}
	return []ir.Expr{dx}, nil
}

func expRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	// The forward node is the derivative of its own argument.
	dx, err := ir.NewCall("mul", dout, op)
	if err != nil {
		return nil, err
	}
	return []ir.Expr{dx}, nil
}

func logRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	dx, err := ir.NewCall("div", dout, args[0])
	if err != nil {
		return nil, err
	}
	return []ir.Expr{dx}, nil
}

func sqrtRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	den, err := ir.NewCall("mul", ir.NewFloatConst(2), op)
	if err != nil {
		return nil, err
	}
	dx, err := ir.NewCall("div", dout, den)
	if err != nil {
		return nil, err
	}
	return []ir.Expr{dx}, nil
}

func tanhRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	sq, err := ir.NewCall("mul", op, op)
	if err != nil {
		return nil, err
	}
	omt, err := ir.NewCall("sub", ir.NewFloatConst(1), sq)
	if err != nil {
		return nil, err
	}
	dx, err := ir.NewCall("mul", dout, omt)
	if err != nil {
		return nil, err
	}
	return []ir.Expr{dx}, nil
}

func identRule(op *ir.Call, dout ir.Expr, args []ir.Expr) ([]ir.Expr, error) {
	if err := checkArity(op, args, 1); err != nil {
		return nil, err
	}
	return []ir.Expr{dout}, nil
}
