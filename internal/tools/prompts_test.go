// ABOUTME: Tests for the tool and prompt catalogs
// ABOUTME: Verifies schema shapes, defaults, and template selection

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionsCatalog(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 9)

	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		assert.NotEmpty(t, d.Description, d.Name)
		assert.Equal(t, "object", d.InputSchema["type"], d.Name)
		byName[d.Name] = d
	}

	create := byName[ToolCreateAgent]
	assert.Equal(t, []string{"repository_url", "prompt"}, create.InputSchema["required"])

	branches := byName[ToolListRepoBranches]
	assert.Equal(t, []string{"repository_url"}, branches.InputSchema["required"])

	usage := byName[ToolGetAPIUsage]
	assert.Equal(t, false, usage.InputSchema["additionalProperties"])
}

func TestPromptDefinitions(t *testing.T) {
	defs := PromptDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, PromptTaskTemplate, defs[0].Name)
	assert.True(t, defs[0].Arguments[0].Required)
	assert.False(t, defs[0].Arguments[1].Required)
}

func TestTaskTemplateSelection(t *testing.T) {
	assert.Contains(t, TaskTemplate("feature", "simple"), "Implement a simple")
	assert.Contains(t, TaskTemplate("bugfix", "complex"), "system-wide bug")

	// Defaults: feature/medium.
	assert.Contains(t, TaskTemplate("", ""), "moderate complexity")

	assert.Equal(t,
		"Custom task template - please provide specific requirements.",
		TaskTemplate("refactor", "simple"))
}

func TestFollowupGuideSelection(t *testing.T) {
	assert.Contains(t, FollowupGuide("running", "clarification"), "currently working")
	assert.Contains(t, FollowupGuide("running", "issue"), "Troubleshooting Follow-ups")
	assert.Contains(t, FollowupGuide("stuck", "clarification"), "Unsticking Strategies")

	assert.Equal(t,
		"Provide clear, specific instructions to help the agent continue.",
		FollowupGuide("completed", "issue"))
}
