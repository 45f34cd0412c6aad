// Package fetch performs single request/response cycles against the star log
// API and decodes typed payloads.
//
// A response is one of three things:
//
//   - a decoded value
//   - absent (nil), when the body is empty or JSON null
//   - an error: kind transport when no usable response arrived (connection
//     failure, timeout, non-2xx status), kind decode when the body is
//     malformed
//
// Transport and decode failures are logged under different messages but both
// map to status.Error.
package fetch
