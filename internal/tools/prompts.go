// ABOUTME: Prompt catalog with task templates and follow-up guides
// ABOUTME: Keyed by task type/complexity and agent status/issue type

package tools

// PromptDefinition describes one prompt as advertised to clients.
type PromptDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument is one named prompt parameter.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Prompt names.
const (
	PromptTaskTemplate  = "cursor_agent_task_template"
	PromptFollowupGuide = "cursor_agent_followup_guide"
)

// PromptDefinitions returns the prompt catalog.
func PromptDefinitions() []PromptDefinition {
	return []PromptDefinition{
		{
			Name:        PromptTaskTemplate,
			Description: "Template for creating effective background agent tasks",
			Arguments: []PromptArgument{
				{Name: "task_type", Description: "Type of task (feature, bugfix, refactor, test, docs)", Required: true},
				{Name: "complexity", Description: "Task complexity (simple, medium, complex)", Required: false},
			},
		},
		{
			Name:        PromptFollowupGuide,
			Description: "Guide for effective follow-up instructions to background agents",
			Arguments: []PromptArgument{
				{Name: "current_status", Description: "Current status of the agent", Required: true},
				{Name: "issue_type", Description: "Type of issue or clarification needed", Required: false},
			},
		},
	}
}

// TaskTemplate renders the task template for the given type and
// complexity. Unknown combinations fall back to a generic instruction
// rather than erroring.
func TaskTemplate(taskType, complexity string) string {
	if taskType == "" {
		taskType = "feature"
	}
	if complexity == "" {
		complexity = "medium"
	}
	if byComplexity, ok := taskTemplates[taskType]; ok {
		if template, ok := byComplexity[complexity]; ok {
			return template
		}
	}
	return "Custom task template - please provide specific requirements."
}

// FollowupGuide renders the follow-up guide for the given agent status
// and issue type.
func FollowupGuide(currentStatus, issueType string) string {
	if currentStatus == "" {
		currentStatus = "running"
	}
	if issueType == "" {
		issueType = "clarification"
	}
	if byIssue, ok := followupGuides[currentStatus]; ok {
		if guide, ok := byIssue[issueType]; ok {
			return guide
		}
	}
	return "Provide clear, specific instructions to help the agent continue."
}

var taskTemplates = map[string]map[string]string{
	"feature": {
		"simple": `
# Feature Implementation Task

## Objective
Implement a simple {feature_name} feature.

## Requirements
- Create the basic functionality
- Add appropriate error handling
- Include basic tests
- Update documentation

## Acceptance Criteria
- [ ] Feature works as described
- [ ] Code follows project conventions
- [ ] Tests pass
- [ ] Documentation updated

## Notes
Keep the implementation simple and focused. Ask for clarification if requirements are unclear.
`,
		"medium": `
# Feature Implementation Task

## Objective
Implement a {feature_name} feature with moderate complexity.

## Requirements
- Design and implement the core functionality
- Handle edge cases and error scenarios
- Create comprehensive tests (unit + integration)
- Update documentation and examples
- Consider performance implications

## Acceptance Criteria
- [ ] Feature fully implemented according to specs
- [ ] Comprehensive error handling
- [ ] Test coverage > 80%
- [ ] Performance meets requirements
- [ ] Documentation includes examples

## Implementation Approach
1. Analyze existing codebase patterns
2. Design the feature architecture
3. Implement core functionality
4. Add error handling and validation
5. Create tests
6. Update documentation

## Notes
This is a moderate complexity task. Break it down into smaller commits and ask for feedback if you encounter design decisions.
`,
		"complex": `
# Complex Feature Implementation Task

## Objective
Implement a complex {feature_name} feature requiring significant architectural changes.

## Requirements
- Design scalable architecture
- Implement robust error handling and recovery
- Create comprehensive test suite
- Ensure backward compatibility
- Performance optimization
- Security considerations
- Documentation and migration guides

## Acceptance Criteria
- [ ] Feature fully implemented with scalable design
- [ ] Comprehensive error handling and recovery
- [ ] Test coverage > 90% with integration tests
- [ ] Performance benchmarks met
- [ ] Security review passed
- [ ] Migration path documented

## Implementation Approach
1. Research and design phase
2. Create architectural proposal
3. Implement in phases with reviews
4. Comprehensive testing
5. Performance optimization
6. Security audit
7. Documentation

## Notes
This is a complex task requiring careful planning. Create design documents, seek architectural review, and implement incrementally.
`,
	},
	"bugfix": {
		"simple": `
# Bug Fix Task

## Objective
Fix a simple bug: {bug_description}

## Requirements
- Identify root cause
- Implement minimal fix
- Add regression test
- Verify fix works

## Acceptance Criteria
- [ ] Bug is fixed
- [ ] Root cause identified
- [ ] Regression test added
- [ ] No side effects

## Notes
Focus on minimal, targeted fix. Don't over-engineer the solution.
`,
		"medium": `
# Bug Fix Task

## Objective
Fix a moderate complexity bug: {bug_description}

## Requirements
- Thorough investigation of root cause
- Implement robust fix
- Add comprehensive tests
- Consider related edge cases
- Update documentation if needed

## Acceptance Criteria
- [ ] Bug completely resolved
- [ ] Root cause analysis documented
- [ ] Comprehensive test coverage
- [ ] Related issues addressed
- [ ] Documentation updated

## Investigation Steps
1. Reproduce the bug consistently
2. Analyze logs and error traces
3. Identify root cause
4. Design fix approach
5. Implement and test
6. Verify no regressions

## Notes
This may involve deeper investigation. Document your findings and reasoning for the fix approach.
`,
		"complex": `
# Complex Bug Fix Task

## Objective
Fix a complex, system-wide bug: {bug_description}

## Requirements
- Deep system analysis
- Consider architectural implications
- Implement comprehensive solution
- Extensive testing across systems
- Performance impact analysis
- Migration strategy if needed

## Acceptance Criteria
- [ ] Bug fully resolved across all systems
- [ ] No performance degradation
- [ ] Comprehensive test coverage
- [ ] System stability maintained
- [ ] Migration plan documented

## Investigation Process
1. System-wide impact analysis
2. Root cause deep dive
3. Solution architecture design
4. Implementation with monitoring
5. Comprehensive testing
6. Performance validation
7. Rollback planning

## Notes
This is a critical bug requiring careful analysis. Document everything and consider system-wide implications.
`,
	},
}

var followupGuides = map[string]map[string]string{
	"running": {
		"clarification": `
# Follow-up Instruction for Running Agent

The agent is currently working. If you need to provide clarification:

## Good Follow-up Examples:
- "Please also ensure the feature works on mobile devices"
- "Add validation for email format in the user input"
- "Use TypeScript instead of JavaScript for this component"
- "Follow the existing error handling patterns in the auth module"

## Instructions Format:
Be specific and actionable. The agent will integrate this into its current work.

## Timing:
Send follow-ups early if possible, as the agent may have already started on related work.
`,
		"issue": `
# Follow-up for Issue Resolution

The agent is running but may need help with an issue:

## Troubleshooting Follow-ups:
- "Check the logs in the console for detailed error messages"
- "The API endpoint URL should be '/api/v2/users' not '/api/users'"
- "Import the utility function from '../utils/helpers'"
- "The database schema was updated yesterday, check the migration files"

## Debugging Tips:
- Provide specific file paths
- Share error messages if you have them
- Point to existing code examples
- Clarify external dependencies
`,
	},
	"stuck": {
		"clarification": `
# Help for Stuck Agent

The agent needs additional guidance:

## Effective Unsticking Strategies:
- Break down the task into smaller steps
- Provide specific code examples
- Point to similar implementations in the codebase
- Clarify requirements that may be ambiguous
- Share domain knowledge or business context

## Example:
"Look at how user authentication is handled in src/auth/AuthProvider.tsx for the pattern to follow"
`,
	},
}
