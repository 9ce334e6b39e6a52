package model

// LicenseClass enumerates CDL license classes.
type LicenseClass string

const (
	LicenseClassA LicenseClass = "A"
	LicenseClassB LicenseClass = "B"
	LicenseClassC LicenseClass = "C"
	LicenseClassD LicenseClass = "D"
)

// Question represents a single question in the CDL question bank.
// Questions are immutable once loaded; the engines only read them.
type Question struct {
	ID             int      `json:"id"`
	LicenseClasses []string `json:"license_classes"`
	Endorsements   []string `json:"endorsements,omitempty"`
	Category       string   `json:"category"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectIndex   int      `json:"correct_index"`
	Explanation    string   `json:"explanation"`
}

// QuestionForCandidate is a question without the correct answer or
// explanation, as served while a session is still being answered.
type QuestionForCandidate struct {
	ID       int      `json:"id"`
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
}

// ForCandidate strips grading fields from a question.
func (q *Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:       q.ID,
		Category: q.Category,
		Text:     q.Text,
		Options:  q.Options,
	}
}

// AllowsLicense reports whether the question is offered to the given
// license class.
func (q *Question) AllowsLicense(license string) bool {
	for _, lc := range q.LicenseClasses {
		if lc == license {
			return true
		}
	}
	return false
}

// EndorsementSatisfied reports whether the question's endorsement
// requirement (if any) is met by the held endorsements. Questions without a
// requirement are open to everyone; otherwise at least one required
// endorsement must be held.
func (q *Question) EndorsementSatisfied(held []string) bool {
	if len(q.Endorsements) == 0 {
		return true
	}
	for _, req := range q.Endorsements {
		for _, h := range held {
			if req == h {
				return true
			}
		}
	}
	return false
}
