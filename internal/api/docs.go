package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

var openAPIDocument = gin.H{
	"openapi": "3.0.3",
	"info": gin.H{
		"title":       "Chatbot API",
		"description": "Local LLM Chatbot with Ollama",
		"version":     "1.0.0",
	},
	"components": gin.H{
		"securitySchemes": gin.H{
			"basicAuth": gin.H{"type": "http", "scheme": "basic"},
		},
		"schemas": gin.H{
			"ChatRequest": gin.H{
				"type":     "object",
				"required": []string{"message"},
				"properties": gin.H{
					"message":       gin.H{"type": "string"},
					"system_prompt": gin.H{"type": "string", "nullable": true, "default": "You are a helpful assistant."},
				},
			},
			"ChatResponse": gin.H{
				"type": "object",
				"properties": gin.H{
					"response": gin.H{"type": "string"},
					"model":    gin.H{"type": "string"},
				},
			},
			"HealthResponse": gin.H{
				"type": "object",
				"properties": gin.H{
					"status":   gin.H{"type": "string", "enum": []string{"healthy", "degraded"}},
					"database": gin.H{"type": "string", "enum": []string{"healthy", "unhealthy"}},
					"ollama":   gin.H{"type": "string", "enum": []string{"healthy", "unhealthy"}},
				},
			},
			"Conversation": gin.H{
				"type": "object",
				"properties": gin.H{
					"id":                gin.H{"type": "integer"},
					"created_at":        gin.H{"type": "string", "format": "date-time"},
					"user_message":      gin.H{"type": "string"},
					"assistant_message": gin.H{"type": "string"},
				},
			},
		},
	},
	"paths": gin.H{
		"/": gin.H{
			"get": gin.H{"summary": "Root", "responses": gin.H{"200": gin.H{"description": "Service links"}}},
		},
		"/health": gin.H{
			"get": gin.H{
				"summary": "Check health of all services",
				"responses": gin.H{"200": gin.H{
					"description": "Dependency status",
					"content":     jsonSchemaRef("HealthResponse"),
				}},
			},
		},
		"/chat": gin.H{
			"post": gin.H{
				"summary":     "Send a message to the chatbot",
				"security":    []gin.H{{"basicAuth": []string{}}},
				"requestBody": gin.H{"required": true, "content": jsonSchemaRef("ChatRequest")},
				"responses": gin.H{
					"200": gin.H{"description": "Model reply", "content": jsonSchemaRef("ChatResponse")},
					"400": gin.H{"description": "Invalid payload"},
					"401": gin.H{"description": "Invalid credentials"},
					"502": gin.H{"description": "Ollama request failed"},
					"504": gin.H{"description": "Ollama timeout"},
				},
			},
		},
		"/conversations": gin.H{
			"get": gin.H{
				"summary":  "Get recent conversations",
				"security": []gin.H{{"basicAuth": []string{}}},
				"parameters": []gin.H{{
					"name":   "limit",
					"in":     "query",
					"schema": gin.H{"type": "integer", "default": 10, "minimum": 1},
				}},
				"responses": gin.H{
					"200": gin.H{
						"description": "Newest conversations first",
						"content": gin.H{"application/json": gin.H{"schema": gin.H{
							"type":  "array",
							"items": gin.H{"$ref": "#/components/schemas/Conversation"},
						}}},
					},
					"401": gin.H{"description": "Invalid credentials"},
					"503": gin.H{"description": "Database unavailable"},
				},
			},
		},
	},
}

func jsonSchemaRef(name string) gin.H {
	return gin.H{"application/json": gin.H{"schema": gin.H{"$ref": "#/components/schemas/" + name}}}
}

func handleDocs(c *gin.Context) {
	c.JSON(http.StatusOK, openAPIDocument)
}
