// Package docs registers utapi's swagger specification with swaggo/swag
// so adapters/http can serve it from /swagger/*. This file plays the
// role swag init normally generates from the @Summary/@Router
// annotations in adapters/http/handler.go; it is checked in by hand
// since the toolchain that regenerates it does not run here.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/{family}": {
            "post": {
                "description": "Returns per-resource operation counters, traffic, and storage/object levels over a time range",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Metrics"],
                "summary": "List utilization metrics",
                "parameters": [
                    {"type": "string", "description": "Resource family", "name": "family", "in": "path", "required": true, "enum": ["buckets", "accounts", "service"]},
                    {"type": "string", "description": "Must be ListMetrics", "name": "Action", "in": "query", "required": true},
                    {"type": "string", "description": "API version, e.g. 20160815", "name": "Version", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "403": {"description": "Forbidden"},
                    "500": {"description": "Internal Server Error"}
                }
            }
        },
        "/_/health": {
            "get": {
                "description": "Returns 200 if the process is up",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported swagger metadata. Nothing in the module
// overrides these defaults, so Version stays "dev".
var SwaggerInfo = &swag.Spec{
	Version:          "dev",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "utapi",
	Description:      "S3 utilization tracking service",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
