// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package docs holds the OpenAPI document served under /swagger. Regenerate
// it with `swag init -g main.go` after changing handler annotations.
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
        "/health": {
            "get": {
                "description": "Get API health status",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check endpoint",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.HealthResponse"}}
                }
            }
        },
        "/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Current session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.SessionResponse"}}
                }
            }
        },
        "/session/login": {
            "post": {
                "description": "Exchange credentials with the authentication backend and install the session",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Log in",
                "parameters": [
                    {
                        "description": "Email, password and rememberMe",
                        "name": "credentials",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/backend.Credentials"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/session.User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/main.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/main.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/main.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/main.ErrorResponse"}}
                }
            }
        },
        "/session/logout": {
            "post": {
                "description": "Purge the session from memory, storage and the token cache",
                "tags": ["session"],
                "summary": "Log out",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/session/profile": {
            "patch": {
                "description": "Merge the given fields into the current user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Update profile",
                "parameters": [
                    {
                        "description": "Fields to change",
                        "name": "profile",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/session.ProfileUpdate"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/session.User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/main.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/main.ErrorResponse"}}
                }
            }
        },
        "/session/register": {
            "post": {
                "description": "Create an account and install its session. Registered sessions are remembered.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Register",
                "parameters": [
                    {
                        "description": "Email, password and display name",
                        "name": "credentials",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/backend.Credentials"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/session.User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/main.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/main.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/main.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/main.ErrorResponse"}}
                }
            }
        },
        "/session/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Token cache statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.CacheStats"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/main.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/main.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "auth.CacheStats": {
            "type": "object",
            "properties": {
                "capacity": {"type": "integer"},
                "expiredEvictions": {"type": "integer"},
                "hitRate": {"type": "string"},
                "hits": {"type": "integer"},
                "lruEvictions": {"type": "integer"},
                "misses": {"type": "integer"},
                "size": {"type": "integer"}
            }
        },
        "backend.Credentials": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "password": {"type": "string"},
                "rememberMe": {"type": "boolean"}
            }
        },
        "main.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "main.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"}
            }
        },
        "main.SessionResponse": {
            "type": "object",
            "properties": {
                "authenticated": {"type": "boolean"},
                "rememberMe": {"type": "boolean"},
                "user": {"$ref": "#/definitions/session.User"}
            }
        },
        "session.ProfileUpdate": {
            "type": "object",
            "properties": {
                "bio": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "session.User": {
            "type": "object",
            "properties": {
                "bio": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "role": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8081",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "SkillSwap Session Gateway",
	Description:      "Local gateway owning the SkillSwap client authentication state.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
