// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package validators checks authoring input and publishability rules before
// anything reaches the content store or the sync queue.
//
// Usage patterns:
//  1. Inject a Validator into the service that accepts user input.
//  2. Call Validate with context, value and optional field names; with no
//     field names every rule for the value's type is applied.
package validators

import "context"

// Validator defines a generic validation interface for arbitrary input values.
// Implementations may perform structural validation, semantic checks,
// cross-field rules.
type Validator interface {

	// Validate validates the provided input and optionally
	// restricts validation to specific named fields.
	Validate(context.Context, any, ...string) error
}
