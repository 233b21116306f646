package gateway

import (
	"github.com/avelios/maestro/pkg/plan"
)

// StreamCallbacks builds executor step callbacks that publish progress
// events for the given plan over the broadcaster.
func StreamCallbacks(b *Broadcaster, planID string) (func(plan.PlanStep), func(plan.StepResult)) {
	onStart := func(step plan.PlanStep) {
		b.Broadcast("plan.step.started", map[string]interface{}{
			"planId":     planID,
			"stepNumber": step.StepNumber,
			"action":     step.Action,
		})
	}

	onComplete := func(result plan.StepResult) {
		data := map[string]interface{}{
			"planId":     planID,
			"stepNumber": result.StepNumber,
			"action":     result.Action,
			"status":     string(result.Status),
			"durationMs": result.Duration.Milliseconds(),
		}
		if result.Error != "" {
			data["error"] = result.Error
		}
		b.Broadcast("plan.step.completed", data)
	}

	return onStart, onComplete
}
