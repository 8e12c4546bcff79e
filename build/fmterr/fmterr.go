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

// Package fmterr classifies the errors reported while rewriting
// expression graphs.
//
// Three kinds of errors are distinguished:
//
//   - internal errors report a violated graph invariant. They indicate a
//     malformed input graph or a bug in ein.
//   - unsupported errors report an operation whose derivative is not
//     mathematically provided (for example a product aggregation).
//   - not-implemented errors report an operation whose derivative has not
//     been written yet but may be in the future.
package fmterr

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

type internalError struct {
	err error
}

// Internal marks an error as internal, potentially adding additional information.
func Internal(err error) error {
	return internalError{err: err}
}

// Internalf returns a formatted internal error.
func Internalf(format string, a ...any) error {
	return Internal(errors.Errorf(format, a...))
}

// IsInternal returns true if the error reports a violated invariant.
func IsInternal(err error) bool {
	var target internalError
	return stderrors.As(err, &target)
}

// Error returns a string description of the error.
func (err internalError) Error() string {
	return fmt.Sprintf("ein internal error. This is a bug in ein. Please report it. Error:\n%+v", err.err)
}

// Unwrap returns the error being reported as internal.
func (err internalError) Unwrap() error {
	return err.err
}

type unsupportedError struct {
	err error
}

// Unsupportedf returns an error reporting an operation
// with no mathematical derivative.
func Unsupportedf(format string, a ...any) error {
	return unsupportedError{err: errors.Errorf(format, a...)}
}

// IsUnsupported returns true if the error reports an operation
// that cannot be differentiated.
func IsUnsupported(err error) bool {
	var target unsupportedError
	return stderrors.As(err, &target)
}

// Error returns a string description of the error.
func (err unsupportedError) Error() string {
	return fmt.Sprintf("unsupported: %v", err.err)
}

// Unwrap returns the error being reported as unsupported.
func (err unsupportedError) Unwrap() error {
	return err.err
}

type notImplementedError struct {
	err error
}

// NotImplementedf returns an error reporting an operation
// whose derivative has not been implemented yet.
func NotImplementedf(format string, a ...any) error {
	return notImplementedError{err: errors.Errorf(format, a...)}
}

// IsNotImplemented returns true if the error reports a derivative
// that has not been implemented yet.
func IsNotImplemented(err error) bool {
	var target notImplementedError
	return stderrors.As(err, &target)
}

// Error returns a string description of the error.
func (err notImplementedError) Error() string {
	return fmt.Sprintf("not implemented: %v", err.err)
}

// Unwrap returns the error being reported as not implemented.
func (err notImplementedError) Unwrap() error {
	return err.err
}
