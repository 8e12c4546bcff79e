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
)

// SimpleReduceFn is the function reconciling the shape of a gradient with the
// shape of its source node: it sums out the axes of its first argument that
// its second argument does not have.
const SimpleReduceFn = "simple_reduce"

// Call applies a named function to an ordered list of argument nodes.
type Call struct {
	Fn   string
	Args []Expr

	shape Shape
}

var _ Expr = (*Call)(nil)

// NewCall returns a new call node with its output shape inferred
// from its arguments.
func NewCall(fn string, args ...Expr) (*Call, error) {
	c := &Call{Fn: fn, Args: args}
	if err := c.ComputeShape(); err != nil {
		return nil, err
	}
	return c, nil
}

func (*Call) node() {}

// Shape returns the inferred output shape of the call.
func (c *Call) Shape() *Shape { return &c.shape }

// ComputeShape infers the output shape of the call from its arguments.
//
// A few builtins have a dedicated rule: simple_reduce takes the shape of the
// node it reduces against and comparisons produce booleans. Everything else,
// including any function this package does not know about, broadcasts the
// shapes of all its arguments.
func (c *Call) ComputeShape() error {
	if len(c.Args) == 0 {
		return errors.Errorf("call to %s has no argument", c.Fn)
	}
	if c.Fn == SimpleReduceFn {
		if len(c.Args) != 2 {
			return errors.Errorf("%s expects 2 arguments but got %d", SimpleReduceFn, len(c.Args))
		}
		c.shape = *c.Args[1].Shape().clone()
		return nil
	}
	shapes := make([]*Shape, len(c.Args))
	for i, arg := range c.Args {
		if arg == nil {
			return errors.Errorf("call to %s: argument %d is nil", c.Fn, i)
		}
		shapes[i] = arg.Shape()
	}
	out, err := broadcast(shapes...)
	if err != nil {
		return errors.Wrapf(err, "cannot infer the shape of %s", c.Fn)
	}
	if strings.HasPrefix(c.Fn, "cmp_") {
		out.DType = dtype.Bool
	}
	c.shape = *out
	return nil
}

// String representation of the call.
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", c.Fn, strings.Join(args, ", "))
}
