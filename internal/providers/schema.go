package providers

// CleanToolSchemas adapts a batch of tool definitions' JSON schemas to a
// specific provider's quirks before they're sent as the request's "tools"
// field.
func CleanToolSchemas(providerName string, tools []ToolDefinition) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Function.Name,
				"description": t.Function.Description,
				"parameters":  CleanSchemaForProvider(providerName, t.Function.Parameters),
			},
		})
	}
	return out
}

// CleanSchemaForProvider strips JSON-schema keywords a given provider's
// function-calling implementation rejects. Gemini (routed through the
// OpenAI-compatible provider) is the strict one in the pack: it 400s on
// "additionalProperties" and on "format" values it doesn't recognize for
// string types.
func CleanSchemaForProvider(providerName string, schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	if providerName != "gemini" {
		return schema
	}
	return cleanGeminiSchema(schema)
}

var geminiAllowedStringFormats = map[string]bool{"date-time": true, "enum": true}

func cleanGeminiSchema(node map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(node))
	for k, v := range node {
		if k == "additionalProperties" {
			continue
		}
		if k == "format" {
			if s, ok := v.(string); ok && !geminiAllowedStringFormats[s] {
				continue
			}
		}
		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = cleanGeminiSchema(val)
		case []interface{}:
			out[k] = cleanGeminiSchemaSlice(val)
		default:
			out[k] = v
		}
	}
	return out
}

func cleanGeminiSchemaSlice(items []interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out[i] = cleanGeminiSchema(m)
		} else {
			out[i] = item
		}
	}
	return out
}
