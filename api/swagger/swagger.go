package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "UAP Leave API",
        "description": "University administration portal, leave management service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Leaves", "description": "Leave application workflow"},
        {"name": "Balances", "description": "Per-user leave balance ledger"},
        {"name": "Policies", "description": "Leave policy administration"}
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/leaves": {
            "post": {
                "tags": ["Leaves"],
                "summary": "Submit a leave application",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyLeaveRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation or policy violation"},
                    "409": {"description": "Insufficient balance"}
                }
            }
        },
        "/leaves/my": {
            "get": {
                "tags": ["Leaves"],
                "summary": "List the caller's leave applications",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves/pending": {
            "get": {
                "tags": ["Leaves"],
                "summary": "List pending applications in the caller's review scope",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/leaves/statistics": {
            "get": {
                "tags": ["Leaves"],
                "summary": "Leave statistics grouped by status",
                "parameters": [
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "year", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leaves/{id}": {
            "get": {
                "tags": ["Leaves"],
                "summary": "Get one leave application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Leaves"],
                "summary": "Edit a pending leave application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyLeaveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owner"},
                    "412": {"description": "Application already decided"}
                }
            }
        },
        "/leaves/{id}/cancel": {
            "put": {
                "tags": ["Leaves"],
                "summary": "Cancel a pending leave application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Cancelled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owner"},
                    "412": {"description": "Application already decided"}
                }
            }
        },
        "/leaves/{id}/approve": {
            "put": {
                "tags": ["Leaves"],
                "summary": "Approve a pending leave application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Outside review scope"},
                    "409": {"description": "Insufficient balance, application rolled back to pending"},
                    "412": {"description": "Application already decided"}
                }
            }
        },
        "/leaves/{id}/reject": {
            "put": {
                "tags": ["Leaves"],
                "summary": "Reject a pending leave application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing rejection reason"}
                }
            }
        },
        "/balances/my": {
            "get": {
                "tags": ["Balances"],
                "summary": "Get the caller's leave balance",
                "parameters": [
                    {"name": "year", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balances/low": {
            "get": {
                "tags": ["Balances"],
                "summary": "List users whose remaining balance fell under a threshold",
                "parameters": [
                    {"name": "threshold", "in": "query", "type": "integer"},
                    {"name": "year", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balances/initialize": {
            "post": {
                "tags": ["Balances"],
                "summary": "Initialize balances for every active user with a role in a department",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkInitializeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Batch result with per-user failures", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balances/{id}": {
            "get": {
                "tags": ["Balances"],
                "summary": "Get a user's leave balance",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "year", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balances/{id}/initialize": {
            "post": {
                "tags": ["Balances"],
                "summary": "Initialize one user's balance from the active policy",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balances/{id}/reset": {
            "post": {
                "tags": ["Balances"],
                "summary": "Reset one user's balance from the current active policy",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Reset", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/policies": {
            "get": {
                "tags": ["Policies"],
                "summary": "List leave policies",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Policies"],
                "summary": "Create a leave policy",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePolicyRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Active policy already exists for the triple"}
                }
            }
        },
        "/policies/active": {
            "get": {
                "tags": ["Policies"],
                "summary": "Resolve the active policy applying to the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active policy"}
                }
            }
        },
        "/policies/default": {
            "post": {
                "tags": ["Policies"],
                "summary": "Create and activate a policy from built-in defaults",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Active policy already exists for the triple"}
                }
            }
        },
        "/policies/{id}": {
            "get": {
                "tags": ["Policies"],
                "summary": "Get one policy",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Policies"],
                "summary": "Patch a policy",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/policies/{id}/activate": {
            "put": {
                "tags": ["Policies"],
                "summary": "Activate a policy",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Activated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Another policy is already active"}
                }
            }
        },
        "/policies/{id}/deactivate": {
            "put": {
                "tags": ["Policies"],
                "summary": "Deactivate a policy",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Deactivated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Runtime metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"}
                }
            }
        }
    },
    "definitions": {
        "ApplyLeaveRequest": {
            "type": "object",
            "required": ["category", "start_date", "end_date", "reason"],
            "properties": {
                "category": {"type": "string", "enum": ["casual", "sick", "emergency", "medical", "earned", "duty", "maternity", "paternity", "personal"]},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"},
                "reason": {"type": "string", "minLength": 10, "maxLength": 500},
                "documents": {"type": "array", "items": {"type": "string"}}
            }
        },
        "DecisionRequest": {
            "type": "object",
            "properties": {
                "remarks": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "BulkInitializeRequest": {
            "type": "object",
            "required": ["role", "department"],
            "properties": {
                "role": {"type": "string"},
                "department": {"type": "string"},
                "year": {"type": "string"}
            }
        },
        "CreatePolicyRequest": {
            "type": "object",
            "required": ["requester_type", "department", "academic_year", "rules"],
            "properties": {
                "requester_type": {"type": "string", "enum": ["student", "teacher", "staff"]},
                "department": {"type": "string"},
                "academic_year": {"type": "string"},
                "rules": {"type": "object"},
                "min_attendance_percent": {"type": "integer"},
                "max_leaves_per_month": {"type": "integer"},
                "allow_past_dates": {"type": "boolean"},
                "workflow": {"type": "string", "enum": ["hod-only", "hod-then-admin", "admin-only"]},
                "auto_approve_days": {"type": "integer"},
                "activate": {"type": "boolean"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
