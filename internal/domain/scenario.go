package domain

// DetailPriority marks a required detail as mandatory or optional for the
// exercise score.
type DetailPriority string

const (
	PriorityRequired DetailPriority = "required"
	PriorityOptional DetailPriority = "optional"
)

// RequiredDetail is a piece of information the trainee is expected to elicit
// from the persona. A detail counts as obtained when any of its keywords
// appears in a user question.
type RequiredDetail struct {
	ID          string         `json:"id" yaml:"id"`
	Label       string         `json:"label" yaml:"label"`
	Description string         `json:"description" yaml:"description"`
	Keywords    []string       `json:"keywords" yaml:"keywords"`
	Priority    DetailPriority `json:"priority" yaml:"priority"`
}

// HintTrigger selects how a hint is activated.
type HintTrigger string

const (
	TriggerKeyword HintTrigger = "keyword"
	TriggerTime    HintTrigger = "time"
	TriggerManual  HintTrigger = "manual"
)

// HintCategory groups hints for display.
type HintCategory string

const (
	CategoryDiscovery    HintCategory = "discovery"
	CategoryTechnical    HintCategory = "technical"
	CategoryRelationship HintCategory = "relationship"
)

// Hint is a contextual tip surfaced to the trainee during a session.
type Hint struct {
	ID           string       `json:"id" yaml:"id"`
	Trigger      HintTrigger  `json:"trigger" yaml:"trigger"`
	Keywords     []string     `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	DelaySeconds int          `json:"delaySeconds,omitempty" yaml:"delaySeconds,omitempty"`
	Text         string       `json:"text" yaml:"text"`
	Category     HintCategory `json:"category" yaml:"category"`
}

// Scenario is a full client-persona definition: who the trainee is talking
// to, what the persona opens with, and what the trainee is meant to uncover.
type Scenario struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Role            string           `json:"role" yaml:"role"`
	Company         string           `json:"company" yaml:"company"`
	AvatarSeed      string           `json:"avatarSeed,omitempty" yaml:"avatarSeed,omitempty"`
	OpeningLine     string           `json:"openingLine" yaml:"openingLine"`
	SystemPrompt    string           `json:"-" yaml:"systemPrompt"`
	MaxTurns        int              `json:"maxTurns" yaml:"maxTurns,omitempty"`
	RequiredDetails []RequiredDetail `json:"requiredDetails" yaml:"requiredDetails"`
	Hints           []Hint           `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// DefaultMaxTurns is the session turn limit used when a scenario does not
// set its own.
const DefaultMaxTurns = 15
