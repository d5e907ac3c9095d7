package conceptgraph

// seedConcepts is the built-in personal-finance curriculum.
var seedConcepts = []Concept{
	{
		ID:            "money_basics",
		Name:          "Money Basics",
		Description:   "Understanding what money is and its role in daily life",
		Difficulty:    1,
		EstimatedMins: 5,
		Tags:          []string{"foundations"},
		Card: &AuthoredCard{
			Title:        "What money does",
			LearningText: "Money is a medium of exchange, a unit of account and a store of value. It lets you trade work for goods without bartering, compare prices, and move today's earnings into tomorrow.",
			Question:     "Which of these is NOT a core function of money?",
			Options:      []string{"Medium of exchange", "Unit of account", "Store of value", "Guaranteed investment return"},
			CorrectIndex: 3,
			Explanation:  "Money exchanges, measures and stores value. Returns come from investing it, not from holding it.",
		},
	},
	{
		ID:            "income_basics",
		Name:          "Income Basics",
		Description:   "Understanding different sources of income",
		Difficulty:    1,
		EstimatedMins: 5,
		Tags:          []string{"foundations", "income"},
		Card: &AuthoredCard{
			Title:        "Where income comes from",
			LearningText: "Income can be active (salary, wages, freelance fees) or passive (interest, dividends, rent). Take-home pay is what is left after taxes and deductions, and it is the number to plan with.",
			Question:     "Which figure should a monthly budget be built on?",
			Options:      []string{"Gross salary", "Take-home pay", "Annual bonus", "Employer's revenue"},
			CorrectIndex: 1,
			Explanation:  "Take-home pay is the money that actually reaches you after taxes and deductions.",
		},
	},
	{
		ID:            "expense_tracking",
		Name:          "Expense Tracking",
		Description:   "How to track and categorize your spending",
		Difficulty:    2,
		EstimatedMins: 8,
		Prerequisites: []string{"money_basics"},
		Tags:          []string{"expense", "tracking", "budget"},
		Card: &AuthoredCard{
			Title:        "Know where it goes",
			LearningText: "Tracking expenses means recording every spend and grouping it into categories such as rent, food and transport. A month of tracking usually reveals a few small, frequent purchases that add up.",
			Question:     "What is the main benefit of categorizing expenses?",
			Options:      []string{"It lowers prices", "It shows which areas consume the most money", "It increases income", "It removes the need for savings"},
			CorrectIndex: 1,
			Explanation:  "Categories make spending patterns visible so you can decide where to cut back.",
		},
	},
	{
		ID:            "budgeting_basics",
		Name:          "Budgeting Basics",
		Description:   "Creating and maintaining a personal budget",
		Difficulty:    2,
		EstimatedMins: 10,
		Prerequisites: []string{"income_basics", "expense_tracking"},
		Tags:          []string{"budget"},
		Card: &AuthoredCard{
			Title:        "The 50/30/20 rule",
			LearningText: "A simple budget splits take-home pay into 50% needs, 30% wants and 20% savings. On an income of 40,000 that is 20,000 for needs, 12,000 for wants and 8,000 for savings.",
			Question:     "What is the 50/30/20 budgeting rule?",
			Options:      []string{"50% needs, 30% wants, 20% savings", "50% savings, 30% needs, 20% wants", "50% wants, 30% savings, 20% needs", "50% income, 30% expenses, 20% debt"},
			CorrectIndex: 0,
			Explanation:  "The rule allocates 50% to needs, 30% to wants and 20% to savings.",
		},
	},
	{
		ID:            "emergency_fund",
		Name:          "Emergency Fund",
		Description:   "Building and maintaining an emergency savings fund",
		Difficulty:    3,
		EstimatedMins: 10,
		Prerequisites: []string{"budgeting_basics"},
		Tags:          []string{"saving", "emergency", "budget"},
		Card: &AuthoredCard{
			Title:        "A buffer for surprises",
			LearningText: "An emergency fund covers 3 to 6 months of essential expenses. With monthly expenses of 20,000, the target is 60,000 to 120,000, kept somewhere safe and easy to withdraw.",
			Question:     "Monthly essentials cost 20,000. What is a typical emergency fund target?",
			Options:      []string{"5,000", "20,000", "60,000 to 120,000", "1,000,000"},
			CorrectIndex: 2,
			Explanation:  "Three to six months of essentials: 3 x 20,000 to 6 x 20,000.",
		},
	},
	{
		ID:            "debt_management",
		Name:          "Debt Management",
		Description:   "Understanding and managing different types of debt",
		Difficulty:    3,
		EstimatedMins: 12,
		Prerequisites: []string{"budgeting_basics"},
		Tags:          []string{"debt"},
	},
	{
		ID:            "saving_strategies",
		Name:          "Saving Strategies",
		Description:   "Effective strategies for building savings",
		Difficulty:    3,
		EstimatedMins: 10,
		Prerequisites: []string{"budgeting_basics"},
		Tags:          []string{"saving"},
	},
	{
		ID:            "investment_basics",
		Name:          "Investment Basics",
		Description:   "Introduction to investing and growing wealth",
		Difficulty:    4,
		EstimatedMins: 15,
		Prerequisites: []string{"emergency_fund", "saving_strategies"},
		Tags:          []string{"investing"},
		Card: &AuthoredCard{
			Title:        "Time in the market",
			LearningText: "A monthly investment of 2,000 at a 10% annual return grows to roughly 4 lakh in 10 years. Most of the growth comes from compounding, so starting early and staying consistent matter more than timing.",
			Question:     "What drives most long-term growth in a regular investment plan?",
			Options:      []string{"Picking the perfect day to buy", "Compounding over time", "Frequent trading", "Avoiding all risk"},
			CorrectIndex: 1,
			Explanation:  "Returns earn further returns, so time and consistency dominate.",
		},
	},
	{
		ID:            "credit_score",
		Name:          "Credit Score",
		Description:   "Understanding credit scores and how to improve them",
		Difficulty:    4,
		EstimatedMins: 12,
		Prerequisites: []string{"debt_management"},
		Tags:          []string{"debt", "credit"},
	},
	{
		ID:            "financial_goals",
		Name:          "Financial Goal Setting",
		Description:   "Setting and achieving short and long-term financial goals",
		Difficulty:    4,
		EstimatedMins: 12,
		Prerequisites: []string{"budgeting_basics", "saving_strategies"},
		Tags:          []string{"saving", "planning"},
	},
}

// SeedConcepts returns a copy of the built-in curriculum.
func SeedConcepts() []Concept {
	out := make([]Concept, len(seedConcepts))
	copy(out, seedConcepts)
	return out
}

// Default builds the graph for the built-in curriculum. The seed is validated
// by tests, so a failure here is a programming error.
func Default() *Graph {
	g, err := New(SeedConcepts())
	if err != nil {
		panic(err)
	}
	return g
}
