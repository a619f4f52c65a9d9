// Package output renders server replies for respkv-cli.
//
// Supported formats:
//   - raw: redis-cli style text, the default
//   - table: index/value rows, or field/value rows for INFO text
//   - json, yaml: the reply converted to plain values
package output
