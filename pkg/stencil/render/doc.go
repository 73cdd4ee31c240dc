// Package render provides tree helpers for ODF template rendering.
//
// This package contains pure helper functions used by the stencil pipeline
// before and after the evaluator runs. They work on *xml.Node trees only and
// never call back into the stencil package, avoiding circular dependencies.
//
// # Structure Organization
//
//   - control.go: structural scopes and the common-ancestor math used to find
//     the span a block directive governs
//   - helpers.go: merging of adjacent text nodes and equivalent sibling elements
//   - softbreak.go: removal of text:soft-page-break markers
//   - ids.go: IDRegistry and duplicate id repair after loops cloned subtrees
//   - frame.go: ODF lengths and aspect-preserving frame sizing for images
//   - text.go: conversion of substituted plain text into paragraph markup
//
// # Design Principles
//
// Pure Functions: functions in this package
//   - keep no package-level state (IDRegistry is passed explicitly)
//   - do not call back into the stencil package
//   - work with xml package types directly
//   - can be tested independently
//
// Example of repairing ids after a loop rendered three copies of a table row:
//
//	reg := render.NewIDRegistry()
//	renamed := render.RepairDuplicateIDs(doc, reg)
//	// rows now carry xml:id values row1, row1_1, row1_2
package render
