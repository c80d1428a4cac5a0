// Package types provides core types used across the flowturn engine.
// This package has ZERO dependencies on other flowturn packages to avoid
// circular imports. All other packages should import types from here.
package types
