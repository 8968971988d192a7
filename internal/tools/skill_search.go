package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaygate/relaygate/internal/skills"
)

// SkillSearchTool looks up skills by name/description match. Used instead
// of inlining every skill into the system prompt once the skill set grows
// too large (see agent.Loop's hybrid inline/search threshold).
type SkillSearchTool struct {
	loader *skills.Loader
}

func NewSkillSearchTool(loader *skills.Loader) *SkillSearchTool {
	return &SkillSearchTool{loader: loader}
}

func (t *SkillSearchTool) Name() string        { return "skill_search" }
func (t *SkillSearchTool) SideEffects() string { return "none" }
func (t *SkillSearchTool) Description() string {
	return "Search available skills by keyword and return their full content"
}
func (t *SkillSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Keyword to match against skill names and descriptions",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SkillSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.loader == nil {
		return ErrorResult("skill search is not configured")
	}
	query, _ := args["query"].(string)

	matches := t.loader.Search(query, 5)
	if len(matches) == 0 {
		return SilentResult(fmt.Sprintf("no skills matched %q", query))
	}

	var b strings.Builder
	for i, s := range matches {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "# %s\n%s\n\n%s", s.Name, s.Description, s.Content)
	}
	return SilentResult(b.String())
}
