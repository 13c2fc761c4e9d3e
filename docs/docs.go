// Package docs registers the OpenAPI document of the lms-web HTTP API with
// swag so echo-swagger can serve it.
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
				"tags": [
					"health"
				],
				"summary": "Liveness probe",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/health/ready": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Readiness probe",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"503": {
						"description": "Service Unavailable"
					}
				}
			}
		},
		"/v1/session": {
			"get": {
				"tags": [
					"session"
				],
				"summary": "Current session",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/v1/session/login": {
			"post": {
				"tags": [
					"session"
				],
				"summary": "Login",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/domain.LoginForm"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					},
					"429": {
						"description": "Too Many Requests",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					},
					"502": {
						"description": "Bad Gateway",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/session/register": {
			"post": {
				"tags": [
					"session"
				],
				"summary": "Register a new user",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/domain.RegisterForm"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					},
					"502": {
						"description": "Bad Gateway",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/session/password-reset": {
			"post": {
				"tags": [
					"session"
				],
				"summary": "Request a password reset",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/domain.ForgotPasswordForm"
						}
					}
				],
				"responses": {
					"202": {
						"description": "Accepted"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/session/logout": {
			"post": {
				"tags": [
					"session"
				],
				"summary": "Logout",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/v1/modal": {
			"get": {
				"tags": [
					"modal"
				],
				"summary": "Modal state",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/v1/modal/open": {
			"post": {
				"tags": [
					"modal"
				],
				"summary": "Open the modal",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.viewRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/modal/switch": {
			"post": {
				"tags": [
					"modal"
				],
				"summary": "Switch the modal view",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.viewRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/modal/close": {
			"post": {
				"tags": [
					"modal"
				],
				"summary": "Close the modal",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/v1/modal/form": {
			"put": {
				"tags": [
					"modal"
				],
				"summary": "Update the modal form",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/domain.AuthForm"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/notifications": {
			"get": {
				"tags": [
					"notifications"
				],
				"summary": "Visible notifications",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/v1/notifications/{id}": {
			"delete": {
				"tags": [
					"notifications"
				],
				"summary": "Dismiss a notification",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Notification id",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				}
			}
		},
		"/v1/notifications/stream": {
			"get": {
				"tags": [
					"notifications"
				],
				"summary": "Notification stream (websocket)",
				"produces": [
					"application/json"
				],
				"responses": {
					"101": {
						"description": "Switching Protocols"
					}
				}
			}
		},
		"/v1/courses": {
			"get": {
				"tags": [
					"courses"
				],
				"summary": "Course catalog",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"courses"
				],
				"summary": "Create a course",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/domain.CourseForm"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/courses/{id}": {
			"get": {
				"tags": [
					"courses"
				],
				"summary": "Get a course",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Course id",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			},
			"put": {
				"tags": [
					"courses"
				],
				"summary": "Update a course",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Course id",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/domain.CourseForm"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			},
			"delete": {
				"tags": [
					"courses"
				],
				"summary": "Delete a course",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "Course id",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/categories": {
			"get": {
				"tags": [
					"courses"
				],
				"summary": "Course categories",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/v1/enrollments": {
			"get": {
				"tags": [
					"enrollments"
				],
				"summary": "My enrollments",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"enrollments"
				],
				"summary": "Enroll in a course",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.enrollRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/dashboard": {
			"get": {
				"tags": [
					"dashboard"
				],
				"summary": "Dashboard",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/v1/users": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "List users",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "all, student, instructor or admin",
						"name": "role",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/users/{id}": {
			"delete": {
				"tags": [
					"users"
				],
				"summary": "Delete a user",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "User id",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"204": {
						"description": "No Content"
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		},
		"/v1/profile": {
			"get": {
				"tags": [
					"profile"
				],
				"summary": "My profile",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"put": {
				"tags": [
					"profile"
				],
				"summary": "Update my profile",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json",
					"multipart/form-data"
				],
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": false,
						"schema": {
							"$ref": "#/definitions/domain.ProfileForm"
						}
					},
					{
						"type": "file",
						"description": "Avatar image (multipart)",
						"name": "avatar",
						"in": "formData"
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.errorResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"domain.LoginForm": {
			"type": "object",
			"properties": {
				"username": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"username",
				"password"
			]
		},
		"domain.RegisterForm": {
			"type": "object",
			"properties": {
				"username": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"first_name": {
					"type": "string"
				},
				"last_name": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"confirm_password": {
					"type": "string"
				},
				"role": {
					"type": "string"
				}
			},
			"required": [
				"username",
				"email",
				"password",
				"confirm_password",
				"role"
			]
		},
		"domain.ForgotPasswordForm": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				}
			},
			"required": [
				"email"
			]
		},
		"domain.AuthForm": {
			"type": "object",
			"properties": {
				"username": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"first_name": {
					"type": "string"
				},
				"last_name": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"confirm_password": {
					"type": "string"
				},
				"role": {
					"type": "string"
				}
			}
		},
		"domain.CourseForm": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"category": {
					"type": "string"
				},
				"duration": {
					"type": "string"
				}
			},
			"required": [
				"title",
				"description",
				"category"
			]
		},
		"domain.ProfileForm": {
			"type": "object",
			"properties": {
				"username": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"first_name": {
					"type": "string"
				},
				"last_name": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"confirm_password": {
					"type": "string"
				}
			},
			"required": [
				"username",
				"email"
			]
		},
		"handler.viewRequest": {
			"type": "object",
			"properties": {
				"view": {
					"type": "string"
				}
			},
			"required": [
				"view"
			]
		},
		"handler.enrollRequest": {
			"type": "object",
			"properties": {
				"course": {
					"type": "string"
				}
			},
			"required": [
				"course"
			]
		},
		"handler.errorResponse": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string"
				},
				"field": {
					"type": "string"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:		  "1.0",
	Host:			 "",
	BasePath:		 "/",
	Schemes:		  []string{},
	Title:			"lms-web API",
	Description:	  "Session, RBAC and notification layer in front of the LMS API.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:		"{{",
	RightDelim:	   "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
