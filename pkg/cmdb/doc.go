// Package cmdb implements the schema evolution engine of the CMDB: adding
// fields to schemas that may already hold records, backfilling defaults
// into those records, and creating and updating records whose values are
// validated by the typed-value handlers of their fields.
package cmdb
