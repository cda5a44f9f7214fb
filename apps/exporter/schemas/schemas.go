// Package schemas embeds the exporter's OpenAPI document.
package schemas

import _ "embed"

// OpenAPISpec is the OpenAPI 3 document describing the trigger endpoint.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
