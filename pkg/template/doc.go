// Package template renders response bodies and header values from the
// incoming request.
//
// Expressions are written between double braces:
//
//	{"sku": "{{request.pathParam.sku}}", "requestId": "{{uuid}}"}
//
// Supported expressions:
//
//   - uuid: a random UUID v4
//   - now: current time in RFC3339
//   - timestamp: current unix time in seconds
//   - request.method, request.path, request.url, request.body
//   - request.body.<path>: JSONPath lookup into a JSON request body
//     (for example request.body.variables.sku)
//   - request.query.<name>, request.header.<name>
//   - request.pathParam.<name>: {name} path segments and named regex groups
//
// Unlike literal bodies, templates can fail: an unknown expression or an
// unterminated {{ yields an error so the caller can answer with a 500.
package template
