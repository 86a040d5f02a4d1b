// Package api carries the OpenAPI document that requests are validated
// against.
package api

import _ "embed"

//go:embed openapi.yaml
var Spec []byte
