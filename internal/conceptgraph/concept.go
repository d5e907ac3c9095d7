package conceptgraph

// MinDifficulty and MaxDifficulty bound the ordinal difficulty scale.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Concept is a single node in the curriculum graph.
type Concept struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Difficulty    int      `yaml:"difficulty"`
	EstimatedMins int      `yaml:"estimated_time_minutes"`
	Prerequisites []string `yaml:"prerequisites"`

	// Tags feed the compiler's relevance factor. Optional.
	Tags []string `yaml:"tags"`

	// Card holds authored card text. Nil when content comes from elsewhere.
	Card *AuthoredCard `yaml:"card,omitempty"`
}

// AuthoredCard is hand-written learning text and quiz for a concept.
type AuthoredCard struct {
	Title        string   `yaml:"title"`
	LearningText string   `yaml:"learning_text"`
	Question     string   `yaml:"quiz_question"`
	Options      []string `yaml:"quiz_options"`
	CorrectIndex int      `yaml:"quiz_correct"`
	Explanation  string   `yaml:"explanation"`
}

// HasPrerequisites reports whether the concept depends on anything.
func (c Concept) HasPrerequisites() bool {
	return len(c.Prerequisites) > 0
}
