package assessment

import (
	"fmt"
	"sort"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// levelFor maps a percentage to a maturity level.
func levelFor(pct float64) string {
	switch {
	case pct < developingThreshold:
		return LevelBeginner
	case pct < establishedThreshold:
		return LevelDeveloping
	}
	return LevelEstablished
}

func percentage(score, max int) float64 {
	if max == 0 {
		return 0
	}
	return core.Round2(float64(score) / float64(max) * 100)
}

// Score checks that every question of q is answered exactly once with a valid option
// and fills in the scores of sub.
func Score(q Questionnaire, sub *Submission) error {
	answers := make(map[string]int, len(sub.Answers))
	for _, a := range sub.Answers {
		if _, dup := answers[a.QuestionID]; dup {
			return core.NewFieldValidationError("answers", fmt.Sprintf("question %s answered more than once", a.QuestionID))
		}
		answers[a.QuestionID] = a.OptionIndex
	}

	type catScore struct{ score, max int }
	var (
		total, max int
		categories = make(map[string]*catScore)
	)
	for _, question := range q.Questions {
		idx, ok := answers[question.ID]
		if !ok {
			return core.NewFieldValidationError("answers", fmt.Sprintf("question %s is not answered", question.ID))
		}
		if idx < 0 || idx >= len(question.Options) {
			return core.NewFieldValidationError("answers", fmt.Sprintf("invalid option for question %s", question.ID))
		}
		delete(answers, question.ID)

		score, qMax := question.Options[idx].Score, question.maxScore()
		total += score
		max += qMax

		cat, ok := categories[question.Category]
		if !ok {
			cat = &catScore{}
			categories[question.Category] = cat
		}
		cat.score += score
		cat.max += qMax
	}
	for id := range answers {
		return core.NewFieldValidationError("answers", fmt.Sprintf("unknown question %s", id))
	}

	sub.TotalScore = total
	sub.MaxScore = max
	sub.Percentage = percentage(total, max)
	sub.Level = levelFor(sub.Percentage)
	sub.CategoryScores = make(map[string]float64, len(categories))
	sub.WeakCategories = []string{}
	for name, cat := range categories {
		pct := percentage(cat.score, cat.max)
		sub.CategoryScores[name] = pct
		if cat.max > 0 && pct < weakCategoryBelow {
			sub.WeakCategories = append(sub.WeakCategories, name)
		}
	}
	sort.Strings(sub.WeakCategories)
	return nil
}
