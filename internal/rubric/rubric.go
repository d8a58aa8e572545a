// Package rubric holds the fixed scoring rubric and the score-driven
// status rules. It is the single owner of the 60/80 thresholds; every
// component that classifies a total score goes through Classify.
package rubric

// Status is the lifecycle status of a project.
type Status string

const (
	StatusProcessing    Status = "processing"
	StatusPendingReview Status = "pending_review"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// ReviewResult is the verdict derived from the total score.
type ReviewResult string

const (
	ReviewNone        ReviewResult = ""
	ReviewPass        ReviewResult = "pass"
	ReviewConditional ReviewResult = "conditional"
	ReviewFail        ReviewResult = "fail"
)

type Sub struct {
	Name     string
	MaxScore float64
}

type Dimension struct {
	Name     string
	MaxScore float64
	Subs     []Sub
}

// Standard is the process-wide rubric. Dimension max scores sum to 100.
// Order matters: evaluation and zero-filled score scaffolds follow it.
var Standard = []Dimension{
	{
		Name:     "Team Capability",
		MaxScore: 30,
		Subs: []Sub{
			{Name: "Core Team Background", MaxScore: 10},
			{Name: "Team Completeness", MaxScore: 10},
			{Name: "Execution Track Record", MaxScore: 10},
		},
	},
	{
		Name:     "Product & Technology",
		MaxScore: 20,
		Subs: []Sub{
			{Name: "Technical Innovation", MaxScore: 8},
			{Name: "Product Maturity", MaxScore: 6},
			{Name: "R&D Capability", MaxScore: 6},
		},
	},
	{
		Name:     "Market Outlook",
		MaxScore: 20,
		Subs: []Sub{
			{Name: "Market Size", MaxScore: 8},
			{Name: "Competitive Analysis", MaxScore: 6},
			{Name: "Go-To-Market Strategy", MaxScore: 6},
		},
	},
	{
		Name:     "Business Model",
		MaxScore: 20,
		Subs: []Sub{
			{Name: "Revenue Model", MaxScore: 8},
			{Name: "Operating Model", MaxScore: 6},
			{Name: "Growth Model", MaxScore: 6},
		},
	},
	{
		Name:     "Financials",
		MaxScore: 10,
		Subs: []Sub{
			{Name: "Financial Position", MaxScore: 5},
			{Name: "Funding Requirements", MaxScore: 5},
		},
	},
}

// Find returns the rubric entry for name.
func Find(name string) (Dimension, bool) {
	for _, d := range Standard {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// TotalMax is the sum of dimension max scores (100 for Standard).
func TotalMax() float64 {
	var sum float64
	for _, d := range Standard {
		sum += d.MaxScore
	}
	return sum
}

// Classify maps a total score to lifecycle status and review verdict.
// A nil total means no evaluation has completed yet.
func Classify(total *float64) (Status, ReviewResult) {
	switch {
	case total == nil:
		return StatusProcessing, ReviewNone
	case *total >= 80:
		return StatusCompleted, ReviewPass
	case *total >= 60:
		return StatusPendingReview, ReviewConditional
	default:
		return StatusFailed, ReviewFail
	}
}

// Summary renders the three-way classification string shown alongside an
// evaluation. It is keyed on Classify so the thresholds cannot drift.
func Summary(total float64) string {
	status, _ := Classify(&total)
	switch status {
	case StatusCompleted:
		return "Excellent project; qualifies for dedicated incubation space"
	case StatusPendingReview:
		return "Meets baseline incubation criteria; conditional pass"
	default:
		return "Does not qualify for incubation; revise and resubmit"
	}
}
