// Package typedvalue resolves type identifiers to typed-value handlers.
//
// A Class knows how to build a Handler from an option set; a Handler
// validates and serializes raw values for one type and configuration. The
// Registry resolves identifiers to classes through an ordered list of
// Loaders and memoizes handler instances per (type, sorted options) key:
//
//	reg := typedvalue.NewRegistry(logger, typedvalue.Builtins())
//	h, err := reg.Instance("Int", typedvalue.Options{"min": 0, "max": 10})
//	s, err := h.Stringify(5) // "5"
//
// Built-in classes are registered under their short name and under the
// qualified name "cmdb.types.<Name>".
package typedvalue
