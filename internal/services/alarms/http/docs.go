package http

import "chime/internal/modkit/swaggerkit"

func init() {
	swaggerkit.Register(addAlarmPaths)
}

// addAlarmPaths describes the alarm endpoints in the served OpenAPI doc
func addAlarmPaths(spec map[string]any) {
	paths, ok := spec["paths"].(map[string]any)
	if !ok {
		return
	}

	jsonBody := func(ref string) map[string]any {
		return map[string]any{
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": ref},
				},
			},
		}
	}
	op := func(summary string, responses map[string]any) map[string]any {
		responses["400"] = map[string]any{"description": "Bad Request"}
		responses["500"] = map[string]any{"description": "Internal Server Error"}
		return map[string]any{
			"summary":   summary,
			"tags":      []any{"Alarms"},
			"responses": responses,
		}
	}

	paths["/alarms"] = map[string]any{
		"post": op("Create an alarm", map[string]any{
			"201": jsonBody("#/components/schemas/Alarm"),
		}),
		"get": op("List alarms", map[string]any{
			"200": map[string]any{"description": "OK"},
		}),
	}
	paths["/alarms/count"] = map[string]any{
		"get": op("Count alarms", map[string]any{
			"200": map[string]any{"description": "OK"},
		}),
	}
	paths["/alarms/{code_id}"] = map[string]any{
		"get": op("Get one alarm", map[string]any{
			"200": jsonBody("#/components/schemas/Alarm"),
			"404": map[string]any{"description": "Not Found"},
		}),
		"put": op("Update an alarm", map[string]any{
			"200": jsonBody("#/components/schemas/Alarm"),
			"404": map[string]any{"description": "Not Found"},
		}),
		"delete": op("Cancel an alarm", map[string]any{
			"204": map[string]any{"description": "No Content"},
			"404": map[string]any{"description": "Not Found"},
		}),
	}
	paths["/alarms/{code_id}/description"] = map[string]any{
		"get": op("Get the alarm description", map[string]any{
			"200": map[string]any{"description": "OK"},
			"404": map[string]any{"description": "Not Found"},
		}),
	}

	if comps, ok := spec["components"].(map[string]any); ok {
		if schemas, ok := comps["schemas"].(map[string]any); ok {
			schemas["Alarm"] = map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code_id":      map[string]any{"type": "string", "example": "wake-up-7036"},
					"email":        map[string]any{"type": "string", "format": "email"},
					"time":         map[string]any{"type": "string", "example": "07:30:00"},
					"timezone":     map[string]any{"type": "string", "example": "America/New_York"},
					"days_of_week": map[string]any{"type": "string", "example": "Mon,Wed,Fri"},
					"is_recurring": map[string]any{"type": "boolean"},
					"status":       map[string]any{"type": "string", "enum": []any{"scheduled", "triggered", "canceled", "failed"}},
					"utc_time":     map[string]any{"type": "string", "format": "date-time"},
					"created_at":   map[string]any{"type": "string", "format": "date-time"},
					"updated_at":   map[string]any{"type": "string", "format": "date-time"},
				},
			}
		}
	}
}
