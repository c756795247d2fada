// Package docs registers the Swagger document of the API
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
        "/ads/landing/{advertiser_id}": {
            "get": {
                "description": "Public tracking link placed in ads. Records the click, schedules fraud evaluation and redirects.",
                "tags": ["Ad Tracking"],
                "summary": "Ad click landing",
                "parameters": [
                    {"type": "integer", "description": "Advertiser ID", "name": "advertiser_id", "in": "path", "required": true},
                    {"type": "integer", "description": "Upstream customer ID of the advertiser", "name": "customer_id", "in": "query", "required": true},
                    {"type": "string", "description": "Landing page URL", "name": "destination_url", "in": "query", "required": true},
                    {"type": "string", "description": "Keyword", "name": "keyword", "in": "query"},
                    {"type": "string", "description": "Match type", "name": "match_type", "in": "query"},
                    {"type": "string", "description": "Network type", "name": "network_type", "in": "query"},
                    {"type": "string", "description": "Device type", "name": "device_type", "in": "query"},
                    {"type": "string", "description": "Ad group ID", "name": "ad_group_id", "in": "query"},
                    {"type": "string", "description": "Ad ID", "name": "ad_id", "in": "query"},
                    {"type": "string", "description": "Keyword ID", "name": "keyword_id", "in": "query"},
                    {"type": "string", "description": "Creative ID", "name": "creative_id", "in": "query"},
                    {"type": "string", "description": "Search query", "name": "query", "in": "query"}
                ],
                "responses": {
                    "302": {"description": "Redirect"},
                    "400": {"description": "Invalid tracking link", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Advertiser not found or inactive", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/blocking-rules": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Blocking Rules"],
                "summary": "List blocking rules",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Blocking Rules"],
                "summary": "Create blocking rule",
                "parameters": [
                    {"description": "Rule", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CreateBlockingRuleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/blocking-rules/{id}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Blocking Rules"],
                "summary": "Update blocking rule",
                "parameters": [
                    {"type": "integer", "description": "Rule ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.UpdateBlockingRuleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Blocking Rules"],
                "summary": "Delete blocking rule",
                "parameters": [
                    {"type": "integer", "description": "Rule ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/ads/clicks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Reports"],
                "summary": "List ad clicks",
                "parameters": [
                    {"type": "string", "description": "RFC3339 timestamp or YYYY-MM-DD", "name": "start_date", "in": "query"},
                    {"type": "string", "description": "RFC3339 timestamp or YYYY-MM-DD (whole day included)", "name": "end_date", "in": "query"},
                    {"type": "string", "description": "Filter by source IP", "name": "client_ip", "in": "query"},
                    {"type": "integer", "description": "Page (default 1)", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size (default 20, max 100)", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/blocked-ips": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Reports"],
                "summary": "List blocked IPs",
                "parameters": [
                    {"type": "integer", "description": "Page (default 1)", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size (default 20, max 100)", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/blocked-ips/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Reports"],
                "summary": "Export blocked IPs",
                "responses": {
                    "200": {"description": "XLSX file", "schema": {"type": "file"}}
                }
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {}
            }
        },
        "dto.CreateBlockingRuleRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "time_window_minutes": {"type": "integer"},
                "max_clicks": {"type": "integer"},
                "is_active": {"type": "boolean"}
            }
        },
        "dto.UpdateBlockingRuleRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "time_window_minutes": {"type": "integer"},
                "max_clicks": {"type": "integer"},
                "is_active": {"type": "boolean"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Click Sentinel API",
	Description:      "Click fraud evaluation and automated source blocking for search advertisers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
