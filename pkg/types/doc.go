// Package types defines the CMDB storage model (Schema, Field, Entity,
// Value), the field metadata descriptor, the Store and Database interfaces
// implemented by persistence backends, and the standard errors shared by
// every package in the module.
package types
