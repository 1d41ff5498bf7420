package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

func scale(n int) []Option {
	opts := make([]Option, 0, n+1)
	for i := 0; i <= n; i++ {
		opts = append(opts, Option{Label: string(rune('A' + i)), Score: i})
	}
	return opts
}

func testQuestionnaire() Questionnaire {
	return Questionnaire{
		ID: "q",
		Questions: []Question{
			{ID: "f1", Category: "finance", Text: "Do you keep books?", Options: scale(4)},
			{ID: "f2", Category: "finance", Text: "Do you separate accounts?", Options: scale(4)},
			{ID: "m1", Category: "marketing", Text: "Do you sell online?", Options: scale(2)},
			{ID: "d1", Category: "digital", Text: "Do you use a POS?", Options: []Option{{Label: "no"}, {Label: "n/a"}}},
		},
	}
}

func answers(f1, f2, m1, d1 int) []Answer {
	return []Answer{{QuestionID: "f1", OptionIndex: f1}, {QuestionID: "f2", OptionIndex: f2}, {QuestionID: "m1", OptionIndex: m1}, {QuestionID: "d1", OptionIndex: d1}}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		answers   []Answer
		wantTotal int
		wantPct   float64
		wantLevel string
		wantCats  map[string]float64
		wantWeak  []string
	}{
		{
			name:      "established",
			answers:   answers(4, 4, 2, 0),
			wantTotal: 10,
			wantPct:   100,
			wantLevel: LevelEstablished,
			wantCats:  map[string]float64{"finance": 100, "marketing": 100, "digital": 0},
			wantWeak:  []string{},
		},
		{
			name:      "developing",
			answers:   answers(3, 2, 0, 1),
			wantTotal: 5,
			wantPct:   50,
			wantLevel: LevelDeveloping,
			wantCats:  map[string]float64{"finance": 62.5, "marketing": 0, "digital": 0},
			wantWeak:  []string{"marketing"},
		},
		{
			name:      "beginner",
			answers:   answers(1, 0, 1, 0),
			wantTotal: 2,
			wantPct:   20,
			wantLevel: LevelBeginner,
			wantCats:  map[string]float64{"finance": 12.5, "marketing": 50, "digital": 0},
			wantWeak:  []string{"finance"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := Submission{Answers: tt.answers}
			require.NoError(t, Score(testQuestionnaire(), &sub))
			assert.Equal(t, tt.wantTotal, sub.TotalScore)
			assert.Equal(t, 10, sub.MaxScore)
			assert.Equal(t, tt.wantPct, sub.Percentage)
			assert.Equal(t, tt.wantLevel, sub.Level)
			assert.Equal(t, tt.wantCats, sub.CategoryScores)
			assert.Equal(t, tt.wantWeak, sub.WeakCategories, "categories without a max score are never weak")
		})
	}
}

func TestScore_invalidAnswers(t *testing.T) {
	tests := []struct {
		name    string
		answers []Answer
		wantMsg string
	}{
		{name: "missing", answers: answers(1, 1, 1, 0)[:3], wantMsg: "question d1 is not answered"},
		{name: "duplicate", answers: append(answers(1, 1, 1, 0), Answer{QuestionID: "f1"}), wantMsg: "question f1 answered more than once"},
		{name: "option out of range", answers: answers(5, 1, 1, 0), wantMsg: "invalid option for question f1"},
		{name: "unknown question", answers: append(answers(1, 1, 1, 0), Answer{QuestionID: "x9"}), wantMsg: "unknown question x9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := Submission{Answers: tt.answers}
			err := Score(testQuestionnaire(), &sub)
			require.Error(t, err)
			verr, ok := err.(*core.ValidationError)
			require.True(t, ok, "got %T", err)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, "answers", verr.Fields[0].Field)
			assert.Equal(t, tt.wantMsg, verr.Fields[0].Error)
		})
	}
}

func Test_levelFor(t *testing.T) {
	assert.Equal(t, LevelBeginner, levelFor(0))
	assert.Equal(t, LevelBeginner, levelFor(39.99))
	assert.Equal(t, LevelDeveloping, levelFor(40))
	assert.Equal(t, LevelDeveloping, levelFor(69.99))
	assert.Equal(t, LevelEstablished, levelFor(70))
}
