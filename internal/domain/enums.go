package domain

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Action is the request discriminator accepted by an agent endpoint.
type Action string

const (
	ActionChat     Action = "chat"
	ActionFeedback Action = "feedback"
	ActionSearchKB Action = "search_kb"
)

// Feedback vocabularies. An empty field defaults to the first entry.
var (
	SolvedProblemValues = []string{"yes", "partially", "no"}
	IsAccurateValues    = []string{"yes", "partially", "no"}
	IsClearValues       = []string{"very_clear", "clear", "unclear"}
)

// ValidFeedbackValue reports whether v is in the allowed set.
func ValidFeedbackValue(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// KBDocumentStatus is the lifecycle state of a knowledge-base document.
type KBDocumentStatus string

const (
	KBStatusActive     KBDocumentStatus = "active"
	KBStatusObsolete   KBDocumentStatus = "obsolete"
	KBStatusSuperseded KBDocumentStatus = "superseded"
)

// ValidKBStatus reports whether s is a known document status.
func ValidKBStatus(s KBDocumentStatus) bool {
	switch s {
	case KBStatusActive, KBStatusObsolete, KBStatusSuperseded:
		return true
	}
	return false
}
