// Package protocols holds the protocol tables compiled into the binary: the
// command codes, field names and device constants of the sonic protocol,
// and the materialized descriptors for each shipped device, version and
// build.
package protocols
