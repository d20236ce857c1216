package progression

// DefaultCatalog возвращает стартовый набор достижений.
// Тот же набор засевается миграцией postgres.
func DefaultCatalog() []Achievement {
	return []Achievement{
		// Learning
		seed("first-steps", "First Steps", "Complete your first chapter", "🎯", CategoryLearning, ConditionChapterCompletion, 1, 25),
		seed("getting-started", "Getting Started", "Complete 5 chapters", "📚", CategoryLearning, ConditionChapterCompletion, 5, 50),
		seed("knowledge-seeker", "Knowledge Seeker", "Complete 25 chapters", "🔍", CategoryLearning, ConditionChapterCompletion, 25, 100),
		seed("scholar", "Scholar", "Complete 50 chapters", "🎓", CategoryLearning, ConditionChapterCompletion, 50, 200),
		seed("master-learner", "Master Learner", "Complete 100 chapters", "🧠", CategoryLearning, ConditionChapterCompletion, 100, 500),
		seed("course-graduate", "Course Graduate", "Complete your first course", "🏅", CategoryLearning, ConditionCourseCompletion, 1, 100),
		seed("multi-disciplinary", "Multi-Disciplinary", "Complete 3 courses", "🌐", CategoryLearning, ConditionCourseCompletion, 3, 250),
		seed("expert", "Expert", "Complete 10 courses", "🏆", CategoryLearning, ConditionCourseCompletion, 10, 750),

		// Consistency
		seed("consistent-learner", "Consistent Learner", "Maintain a 3-day learning streak", "🔥", CategoryConsistency, ConditionStreak, 3, 50),
		seed("dedicated-student", "Dedicated Student", "Maintain a 7-day learning streak", "⚡", CategoryConsistency, ConditionStreak, 7, 100),
		seed("habit-former", "Habit Former", "Maintain a 30-day learning streak", "💪", CategoryConsistency, ConditionStreak, 30, 300),
		seed("unstoppable", "Unstoppable", "Maintain a 100-day learning streak", "🚀", CategoryConsistency, ConditionStreak, 100, 1000),

		// Excellence
		seed("quiz-master", "Quiz Master", "Complete 10 quizzes", "📝", CategoryExcellence, ConditionQuizCompletion, 10, 75),
		seed("perfect-score", "Perfect Score", "Get 100% on a quiz", "💯", CategoryExcellence, ConditionPerfectQuiz, 1, 100),
		seed("perfectionist", "Perfectionist", "Get 100% on 5 quizzes", "⭐", CategoryExcellence, ConditionPerfectQuiz, 5, 300),
		seed("quiz-champion", "Quiz Champion", "Get 100% on 25 quizzes", "👑", CategoryExcellence, ConditionPerfectQuiz, 25, 750),

		// Milestones
		seed("rising-star", "Rising Star", "Reach level 5", "🌟", CategoryMilestone, ConditionLevel, 5, 100),
		seed("advanced-learner", "Advanced Learner", "Reach level 10", "✨", CategoryMilestone, ConditionLevel, 10, 250),
		seed("expert-level", "Expert Level", "Reach level 25", "💎", CategoryMilestone, ConditionLevel, 25, 500),
		seed("xp-collector", "XP Collector", "Earn 1,000 total XP", "💰", CategoryMilestone, ConditionTotalXP, 1000, 100),
		seed("xp-hoarder", "XP Hoarder", "Earn 5,000 total XP", "💎", CategoryMilestone, ConditionTotalXP, 5000, 250),
		seed("xp-legend", "XP Legend", "Earn 25,000 total XP", "🏛️", CategoryMilestone, ConditionTotalXP, 25000, 1000),
	}
}

func seed(id, name, description, icon string, category Category, ct ConditionType, count, reward int) Achievement {
	return Achievement{
		ID:          id,
		Name:        name,
		Description: description,
		Icon:        icon,
		Category:    category,
		Condition:   Condition{Type: ct, Count: count},
		XPReward:    reward,
		IsActive:    true,
	}
}
