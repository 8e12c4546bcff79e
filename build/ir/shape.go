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
	"github.com/pkg/errors"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
)

// Shape of a node: an ordered sequence of axis lengths, a data type,
// and a layout tag.
type Shape struct {
	shape.Shape
	Layout string
}

// Rank returns the number of axes of the shape.
func (s *Shape) Rank() int {
	return len(s.AxisLengths)
}

// DimsAsExprs returns the axis lengths as dimension expression nodes.
func (s *Shape) DimsAsExprs() []*DimExpr {
	dims := make([]*DimExpr, len(s.AxisLengths))
	for i, length := range s.AxisLengths {
		dims[i] = NewDimExpr(int64(length))
	}
	return dims
}

func (s *Shape) clone() *Shape {
	return &Shape{
		Shape: shape.Shape{
			DType:       s.DType,
			AxisLengths: append([]int(nil), s.AxisLengths...),
		},
		Layout: s.Layout,
	}
}

func isFloat(dt dtype.DataType) bool {
	return dt == dtype.Float32 || dt == dtype.Float64
}

// broadcast merges shapes by aligning their trailing axes. Two axis lengths
// are compatible if they are equal or if one of them is 1, in which case the
// larger one wins.
func broadcast(shapes ...*Shape) (*Shape, error) {
	out := shapes[0].clone()
	for _, sh := range shapes[1:] {
		merged, err := broadcastPair(out, sh)
		if err != nil {
			return nil, err
		}
		out = merged
	}
	for _, sh := range shapes {
		if isFloat(sh.DType) {
			out.DType = sh.DType
			break
		}
	}
	return out, nil
}

func broadcastPair(x, y *Shape) (*Shape, error) {
	rank := max(x.Rank(), y.Rank())
	dims := make([]int, rank)
	for i := 1; i <= rank; i++ {
		xd, yd := 1, 1
		if i <= x.Rank() {
			xd = x.AxisLengths[x.Rank()-i]
		}
		if i <= y.Rank() {
			yd = y.AxisLengths[y.Rank()-i]
		}
		switch {
		case xd == yd:
			dims[rank-i] = xd
		case xd == 1:
			dims[rank-i] = yd
		case yd == 1:
			dims[rank-i] = xd
		default:
			return nil, errors.Errorf("cannot broadcast axis lengths %v with %v", x.AxisLengths, y.AxisLengths)
		}
	}
	layout := x.Layout
	if x.Rank() == 0 {
		layout = y.Layout
	}
	return &Shape{
		Shape:  shape.Shape{DType: x.DType, AxisLengths: dims},
		Layout: layout,
	}, nil
}
