// Package io provides output-file plumbing for the build pipeline:
// atomic file writes so failed stages never leave partial G-code on
// disk, and JSON export of classified contour forests for inspection
// tooling.
package io
