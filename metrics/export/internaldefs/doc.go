// Package internaldefs holds the metric names, help strings and bucket
// boundaries shared by the goSession exporters.
//
// Both the Prometheus and OTel exporters render from these tables, so a
// rename here changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
