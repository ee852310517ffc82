package framework

import "sync"

// PersonalID identifies the built-in personal decision framework.
const PersonalID = "personal"

var (
	personalOnce sync.Once
	personal     *Framework
)

// Personal returns the built-in personal decision framework. Its rules are
// compiled on first use; a rule that fails to compile is a programming error.
func Personal() *Framework {
	personalOnce.Do(func() {
		fw := newPersonal()
		rs, err := NewRuleSet(fw)
		if err != nil {
			panic("framework: compile personal rules: " + err.Error())
		}
		fw.rules = rs
		personal = fw
	})
	return personal
}

var optionsSource = Dependency{Step: "Identify Options", Field: "options"}

func dependsOnOptions(key string) []Dependency {
	d := optionsSource
	d.Key = key
	return []Dependency{d}
}

func newPersonal() *Framework {
	return &Framework{
		ID:          PersonalID,
		Version:     "1",
		Name:        "Refined Personal Decision Framework",
		Description: "A structured approach for making significant personal decisions that impact your life, career, relationships, or personal growth.",
		Steps: []Step{
			{
				Title:       "Define the Decision",
				Description: "Clearly state the decision you need to make and its context.",
				Fields: []FieldSpec{
					{
						Name:        "decision_statement",
						Type:        TypeText,
						Label:       "Decision Statement",
						Description: "A clear, concise statement of the decision to be made",
						Placeholder: "e.g., Should I change my career from marketing to software development within the next year?",
					},
					{
						Name:        "context",
						Type:        TypeTextarea,
						Label:       "Context",
						Description: "Additional relevant context for the decision",
						Placeholder: "Describe your current situation and why you're considering this decision.",
					},
					{
						Name:        "desired_outcome",
						Type:        TypeText,
						Label:       "Desired Outcome",
						Description: "A statement of what you hope to achieve",
						Placeholder: "e.g., Find a more fulfilling career with better long-term prospects",
					},
				},
				AIInstructions: "Provide suggestions for framing the decision and considering its context. Encourage the user to be specific about what they're deciding, consider the timeframe, and identify any constraints or limitations.",
			},
			{
				Title:       "Gather Information",
				Description: "Collect relevant data and insights to inform your decision.",
				Fields: []FieldSpec{
					{
						Name:        "key_areas",
						Type:        TypeList,
						Label:       "Key Areas to Research",
						Description: "List of important topics or areas to investigate",
						Placeholder: "e.g., Job market trends, required skills, salary differences",
					},
					{
						Name:        "information_sources",
						Type:        TypeList,
						Label:       "Information Sources",
						Description: "List of sources or resources to consult",
						Placeholder: "e.g., Industry reports, job postings, professional networks",
					},
					{
						Name:        "critical_questions",
						Type:        TypeList,
						Label:       "Critical Questions",
						Description: "Important questions to answer through your research",
						Placeholder: "e.g., What skills are in highest demand? What is the job satisfaction rate?",
					},
				},
				AIInstructions: "Suggest reliable sources for research, encourage consulting experts or mentors, and help identify gaps in the user's knowledge. Provide guidance on how to approach the information-gathering process effectively.",
			},
			{
				Title:       "Identify Options",
				Description: "List all possible alternatives for your decision.",
				Fields: []FieldSpec{
					{
						Name:        "options",
						Type:        TypeListOfObjects,
						Label:       "Options",
						Description: "List of potential choices or alternatives",
						Object: []ObjectKey{
							{Name: "name", Type: "text"},
							{Name: "description", Type: "textarea"},
						},
						Placeholder: "e.g., Option 1: Stay in current role, Option 2: Transition to software development full-time",
					},
				},
				AIInstructions: "Encourage brainstorming without judgment, suggest considering unconventional alternatives, and help break down complex options into simpler ones. Provide examples of creative options that the user might not have considered.",
			},
			{
				Title:       "Establish Criteria",
				Description: "Determine the factors that are important in making this decision.",
				Fields: []FieldSpec{
					{
						Name:        "criteria",
						Type:        TypeListOfObjects,
						Label:       "Decision Criteria",
						Description: "Factors to consider when evaluating options",
						Object: []ObjectKey{
							{Name: "name", Type: "text"},
							{Name: "description", Type: "textarea"},
							{Name: "weight", Type: "number", Number: &NumberFormat{Min: 0, Max: 100, Step: 1}},
						},
						Rules: []Rule{
							{
								Name:    "weight_range",
								Expr:    `value.all(c, !has(c.weight) || (double(c.weight) >= 0.0 && double(c.weight) <= 100.0))`,
								Message: "Each weight must be between 0 and 100.",
							},
							{
								Name:    "total_weight",
								Expr:    `sum(value.map(c, has(c.weight) ? double(c.weight) : 0.0)) <= 100.0`,
								Message: "The sum of all weights must not exceed 100.",
							},
						},
						Placeholder: "e.g., Criterion: Potential income, Description: Expected salary and benefits, Weight: 8",
					},
				},
				AIInstructions: "Help the user consider both rational and emotional factors. Suggest prioritizing criteria based on personal values and goals. Encourage being specific about what each criterion means and why it's important.",
			},
			{
				Title:       "Evaluate Options",
				Description: "Assess each option against your established criteria.",
				Fields: []FieldSpec{
					{
						Name:        "evaluations",
						Type:        TypeMatrix,
						Label:       "Option Evaluations",
						Description: "Rate each option against each criterion",
						Matrix: &MatrixSpec{
							Rows:    Source{Source: "options", Step: "Identify Options", Field: "options"},
							Columns: Source{Source: "criteria", Step: "Establish Criteria", Field: "criteria", Use: "name"},
						},
						Cell: &NumberFormat{Min: 1, Max: 5, Step: 1},
						Rules: []Rule{
							{
								Name:    "cell_range",
								Expr:    `value.all(r, value[r].all(c, double(value[r][c]) >= 1.0 && double(value[r][c]) <= 5.0))`,
								Message: "Each rating must be between 1 and 5.",
							},
						},
					},
					{
						Name:        "option_notes",
						Type:        TypeListOfObjects,
						Label:       "Option Notes",
						Description: "Additional notes on strengths and weaknesses of each option",
						Object: []ObjectKey{
							{Name: "option", Type: "text"},
							{Name: "strengths", Type: "textarea"},
							{Name: "weaknesses", Type: "textarea"},
						},
						Dependencies: dependsOnOptions("option"),
					},
				},
				AIInstructions: "Suggest using a consistent rating system for all options. Encourage considering both short-term and long-term impacts. Provide guidance on how to be as objective as possible in assessments while acknowledging emotional factors.",
			},
			{
				Title:       "Consider Consequences",
				Description: "Analyze the potential outcomes and risks of each option.",
				Fields: []FieldSpec{
					{
						Name:        "consequences",
						Type:        TypeListOfObjects,
						Label:       "Potential Consequences",
						Description: "List of possible outcomes for each option",
						Object: []ObjectKey{
							{Name: "option", Type: "text"},
							{Name: "short_term", Type: "textarea"},
							{Name: "long_term", Type: "textarea"},
							{Name: "risks", Type: "textarea"},
						},
						Dependencies: dependsOnOptions("option"),
					},
					{
						Name:        "risk_mitigation",
						Type:        TypeListOfObjects,
						Label:       "Risk Mitigation Strategies",
						Description: "Strategies to address identified risks",
						Object: []ObjectKey{
							{Name: "risk", Type: "text"},
							{Name: "strategy", Type: "textarea"},
						},
					},
				},
				AIInstructions: "Prompt the user to imagine best-case and worst-case scenarios. Encourage consideration of how each option aligns with long-term goals. Help identify potential regrets and ways to mitigate risks.",
			},
			{
				Title:       "Make the Decision",
				Description: "Choose the best option based on your evaluation and analysis.",
				Fields: []FieldSpec{
					{
						Name:         "chosen_option",
						Type:         TypeSelect,
						Label:        "Chosen Option",
						Description:  "The option you've decided to pursue",
						Dependencies: dependsOnOptions("options"),
					},
					{
						Name:        "decision_rationale",
						Type:        TypeTextarea,
						Label:       "Decision Rationale",
						Description: "Explanation of why you chose this option",
					},
				},
				AIInstructions: "Encourage trusting the analysis while also listening to intuition. Suggest discussing the choice with a trusted advisor if appropriate. Provide strategies for overcoming decision paralysis and feeling confident about the choice.",
			},
			{
				Title:       "Create an Action Plan",
				Description: "Develop a step-by-step plan to implement your decision.",
				Fields: []FieldSpec{
					{
						Name:        "action_steps",
						Type:        TypeListOfObjects,
						Label:       "Action Steps",
						Description: "Specific steps to implement your decision",
						Object: []ObjectKey{
							{Name: "description", Type: "text"},
							{Name: "timeline", Type: "text"},
							{Name: "resources_needed", Type: "textarea"},
						},
					},
					{
						Name:        "potential_obstacles",
						Type:        TypeList,
						Label:       "Potential Obstacles",
						Description: "Possible challenges in implementing your decision",
					},
					{
						Name:        "obstacle_strategies",
						Type:        TypeListOfObjects,
						Label:       "Strategies for Overcoming Obstacles",
						Description: "Plans to address potential challenges",
						Object: []ObjectKey{
							{Name: "obstacle", Type: "text"},
							{Name: "strategy", Type: "textarea"},
						},
					},
				},
				AIInstructions: "Help break down the implementation into manageable tasks. Encourage setting specific, measurable goals. Assist in identifying potential obstacles and developing strategies to overcome them.",
			},
			{
				Title:       "Reflect and Learn",
				Description: "Review the outcomes of your decision and extract lessons for future decision-making.",
				Fields: []FieldSpec{
					{
						Name:        "outcomes",
						Type:        TypeTextarea,
						Label:       "Decision Outcomes",
						Description: "Describe the results of implementing your decision",
					},
					{
						Name:        "lessons_learned",
						Type:        TypeList,
						Label:       "Lessons Learned",
						Description: "Key insights gained from this decision-making process",
					},
					{
						Name:        "future_improvements",
						Type:        TypeTextarea,
						Label:       "Future Improvements",
						Description: "How you can improve your decision-making process in the future",
					},
				},
				AIInstructions: "Suggest scheduling regular check-ins to assess progress. Encourage being open to adjusting the plan if needed. Prompt the user to document what worked well and what could be improved in their decision-making process.",
			},
		},
	}
}
