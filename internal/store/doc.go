// Package store provides a SQLite-backed journal of device transactions.
//
// A transaction groups the command calls issued to one device under a token
// and is stamped with a logical sequence number per record. Each record
// carries the key of the protocol descriptor it was validated against:
//   - calls: command code and canonical JSON arguments
//   - answers: answer code and canonical JSON fields, one per call
//
// All ordering uses seq, never wall time, and every query orders by
// seq ASC, id ASC COLLATE BINARY so reads are deterministic.
//
// Record ids are content addresses computed by ir.CallID and ir.AnswerID.
// Writing the same record twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Every answer references a journaled call
package store
