// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates JSON and CUE documents against embedded CUE schemas.
//
// Alias files, project files and the application config all follow the same flow:
//
//  1. Compile the embedded schema and look up its root definition
//  2. Compile the user document and unify it with the definition
//  3. Validate and decode into a Go value
//
// JSON is a subset of CUE, so JSON documents go through the same path.
package cueutil
