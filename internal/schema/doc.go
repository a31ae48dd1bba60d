// Package schema defines the protocol schema model: field types with their
// limits, command and answer definitions, and the immutable protocol
// descriptor that groups them for one device, version and build.
//
// Descriptors are built from a ProtocolTable, checked once, and never
// mutated afterwards. Field types validate IR values without panicking, so
// they can be applied directly to values decoded from the wire.
package schema
