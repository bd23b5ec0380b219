package protocol

import "strings"

// Status is the five-value state shared by tasks and steps.
type Status string

const (
	StatusPending   Status = "pending"
	StatusThinking  Status = "thinking"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Active reports whether the status represents in-flight work.
func (s Status) Active() bool {
	return s == StatusThinking || s == StatusExecuting
}

// MapStatus normalizes the status strings the backend emits onto Status.
// Unrecognized values map to executing so an in-flight step never regresses
// to pending on a vocabulary mismatch.
func MapStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending
	case "thinking":
		return StatusThinking
	case "running", "in_progress", "executing":
		return StatusExecuting
	case "completed", "done", "success":
		return StatusCompleted
	case "failed", "error":
		return StatusError
	default:
		return StatusExecuting
	}
}

// StepCategory tags a step for display grouping.
type StepCategory string

const (
	CategoryPlan     StepCategory = "plan"
	CategorySearch   StepCategory = "search"
	CategoryAnalyze  StepCategory = "analyze"
	CategoryGenerate StepCategory = "generate"
	CategoryVerify   StepCategory = "verify"
	CategoryExecute  StepCategory = "execute"
)

// InferCategory guesses a step category from a tool name. The substring
// heuristic is load-bearing for display compatibility; keep the match
// order and vocabulary stable.
func InferCategory(tool string) StepCategory {
	name := strings.ToLower(tool)
	switch {
	case strings.Contains(name, "search"), strings.Contains(name, "web"):
		return CategorySearch
	case strings.Contains(name, "analyze"), strings.Contains(name, "analysis"):
		return CategoryAnalyze
	case strings.Contains(name, "generate"), strings.Contains(name, "create"):
		return CategoryGenerate
	case strings.Contains(name, "verify"), strings.Contains(name, "check"):
		return CategoryVerify
	default:
		return CategoryExecute
	}
}

// ParseCategory maps an explicit category string, falling back to execute.
func ParseCategory(raw string) StepCategory {
	switch StepCategory(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryPlan, CategorySearch, CategoryAnalyze, CategoryGenerate, CategoryVerify, CategoryExecute:
		return StepCategory(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return CategoryExecute
	}
}
