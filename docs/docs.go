package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "Freight load ingestion: stored loads, ingestion status and cycle triggers",
        "title": "Cargo Ingest API",
        "version": "1.0"
    },
    "host": "localhost:8080",
    "basePath": "/",
    "paths": {
        "/api/v1/loads": {
            "get": {
                "description": "Paginated, sorted list of stored loads",
                "produces": ["application/json"],
                "tags": ["loads"],
                "summary": "List loads",
                "parameters": [
                    {"type": "integer", "default": 10, "description": "Page size (1-100)", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Rows to skip", "name": "offset", "in": "query"},
                    {"type": "string", "description": "false lists only loads not yet notified", "name": "notified", "in": "query"},
                    {"type": "string", "description": "createdAt, expectedPickupAt, tripId, origin, destination or product", "name": "sortBy", "in": "query"},
                    {"type": "string", "description": "asc or desc", "name": "sortOrder", "in": "query"},
                    {"type": "string", "description": "Comma-separated projection", "name": "fields", "in": "query"},
                    {"type": "boolean", "description": "Include the total count", "name": "includeTotal", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LoadsResponse"}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/status": {
            "get": {
                "description": "Load counts and the latest ingestion run",
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Ingestion status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.StatusResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/ingest/run": {
            "post": {
                "security": [{"AdminKeyAuth": []}],
                "description": "Runs one cycle synchronously. Refused while a scheduled cycle is running.",
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Run an ingestion cycle",
                "parameters": [
                    {"type": "string", "description": "Admin key", "name": "X-Admin-Key", "in": "header"},
                    {"type": "string", "description": "Allow-listed scheduler identity", "name": "X-Scheduler-Identity", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ProcessOutcome"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/ingest/webhook": {
            "post": {
                "description": "Runs one cycle synchronously, authenticated by a shared secret.",
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Run an ingestion cycle from a webhook",
                "parameters": [
                    {"type": "string", "description": "Shared secret", "name": "X-Webhook-Secret", "in": "header"},
                    {"type": "string", "description": "Shared secret", "name": "secret", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ProcessOutcome"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "handlers.LoadsResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/domain.LoadRecord"}},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "handlers.StatusResponse": {
            "type": "object",
            "properties": {
                "totalLoads": {"type": "integer"},
                "pendingNotification": {"type": "integer"},
                "lastRun": {"$ref": "#/definitions/domain.IngestionRun"}
            }
        },
        "domain.LoadRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "tripId": {"type": "string"},
                "transportType": {"type": "string"},
                "origin": {"type": "string"},
                "destination": {"type": "string"},
                "product": {"type": "string"},
                "equipment": {"type": "string"},
                "expectedPickupAt": {"type": "string"},
                "deliveryCount": {"type": "string"},
                "freightValue": {"type": "string"},
                "finishAt": {"type": "string"},
                "notifiedAt": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "domain.IngestionRun": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "startedAt": {"type": "string"},
                "finishedAt": {"type": "string"},
                "status": {"type": "string"},
                "discovered": {"type": "integer"},
                "processed": {"type": "integer"},
                "failed": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "domain.ProcessOutcome": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "discovered": {"type": "integer"},
                "known": {"type": "integer"},
                "processed": {"type": "integer"},
                "failed": {"type": "integer"},
                "newRecords": {"type": "array", "items": {"$ref": "#/definitions/domain.LoadRecord"}},
                "failures": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {"tripId": {"type": "string"}, "error": {"type": "string"}}
                    }
                },
                "duration": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "AdminKeyAuth": {
            "type": "apiKey",
            "name": "X-Admin-Key",
            "in": "header"
        }
    }
}`

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &s{})
}
