package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "VoyageDesk Activity API",
        "description": "Staff activity tracking and productivity metrics",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Tracking", "description": "Session lifecycle and event ingestion"},
        {"name": "Reports", "description": "Productivity metrics, trends and exports"}
    ],
    "paths": {
        "/tracking": {
            "get": {
                "tags": ["Tracking"],
                "summary": "List subjects currently being tracked",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/tracking/{subjectId}": {
            "get": {
                "tags": ["Tracking"],
                "summary": "Tracking status for one subject",
                "parameters": [{"name": "subjectId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/tracking/{subjectId}/start": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Open (or rotate) a tracking session",
                "parameters": [{"name": "subjectId", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Session opened"}}
            }
        },
        "/tracking/{subjectId}/stop": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Close the open tracking session",
                "parameters": [{"name": "subjectId", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Stopped"}}
            }
        },
        "/tracking/{subjectId}/events": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Record one activity event",
                "parameters": [{"name": "subjectId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "201": {"description": "Event stored"},
                    "409": {"description": "No active session or out-of-order timestamp"}
                }
            }
        },
        "/reports/{subjectId}/productivity": {
            "get": {
                "tags": ["Reports"],
                "summary": "Productivity metrics for a [from, to) window",
                "parameters": [
                    {"name": "subjectId", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "required": true, "type": "string", "format": "date-time"},
                    {"name": "to", "in": "query", "required": true, "type": "string", "format": "date-time"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid range"}
                }
            }
        },
        "/reports/{subjectId}/activities": {
            "get": {
                "tags": ["Reports"],
                "summary": "Raw events for a [from, to) window",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reports/{subjectId}/trend": {
            "get": {
                "tags": ["Reports"],
                "summary": "Daily productivity trend",
                "parameters": [{"name": "days", "in": "query", "type": "integer", "default": 30}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reports/{subjectId}/export": {
            "post": {
                "tags": ["Reports"],
                "summary": "Schedule an export job (json, csv or pdf)",
                "responses": {"202": {"description": "Job accepted"}}
            }
        },
        "/reports/{subjectId}/export/raw": {
            "get": {
                "tags": ["Reports"],
                "summary": "Synchronous raw JSON export",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a generated export via signed token",
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
