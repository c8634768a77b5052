package agent

import "strings"

// Classify scores a task description against the category keyword lists and
// returns the best match. Ties resolve in a fixed category order so the
// result is deterministic; with no keyword hits the role's natural category
// wins.
func Classify(description string, role Role) TaskCategory {
	lower := strings.ToLower(description)

	// Fixed iteration order keeps tie-breaking stable.
	order := []TaskCategory{
		CategoryCoding, CategoryReasoning, CategoryMath,
		CategoryCreative, CategoryAnalysis, CategoryPlanning,
	}

	best := TaskCategory("")
	bestScore := 0
	for _, category := range order {
		score := 0
		for _, keyword := range categoryKeywords[category] {
			if strings.Contains(lower, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}

	if bestScore > 0 {
		return best
	}

	switch role {
	case RolePlanner:
		return CategoryPlanning
	case RoleExecutor:
		return CategoryCoding
	case RoleAnalyzer:
		return CategoryAnalysis
	default:
		return CategoryGeneral
	}
}

// ModelForCategory returns the preferred local model for a category.
func ModelForCategory(category TaskCategory) string {
	models, ok := categoryModels[category]
	if !ok || len(models) == 0 {
		return categoryModels[CategoryGeneral][0]
	}
	return models[0]
}
