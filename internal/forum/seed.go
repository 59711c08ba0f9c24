package forum

import (
	"time"

	"galway/internal/olive"
)

// seedUserID is the user id recorded for the built-in demo accounts.
func seedUserID(username string) string {
	return "seed-" + username
}

func seedLikes(usernames ...string) []string {
	out := make([]string, len(usernames))
	for i, u := range usernames {
		out[i] = seedUserID(u)
	}
	return out
}

func seedAuthor(username, role string, c olive.Colors, olives int) Author {
	return Author{
		UserID:      seedUserID(username),
		Username:    username,
		Role:        role,
		OliveBranch: &BranchRef{SVG: olive.Render(c, olive.OlivePositions[:olives])},
	}
}

// SeedContent returns the welcome threads and replies installed on an empty forum.
func SeedContent(now time.Time) ([]Thread, []Reply) {
	ago := func(d time.Duration) time.Time { return now.Add(-d).UTC() }
	const day = 24 * time.Hour

	dyeReply1 := ago(5 * time.Hour)
	dyeReply2 := ago(3 * time.Hour)

	threads := []Thread{
		{
			ID:       "thread-a1b2c3",
			Category: CategoryResearch,
			Title:    "Rit Dye's Study: Effectiveness? Alternatives?",
			Content: "Hello everyone, I've been dying my clothing for a while now with Rit Dyes and I would like to share my findings. " +
				"After extensive testing with various fabric types, I've discovered that cotton blends respond significantly better than pure synthetic materials. " +
				"The color retention varies dramatically based on water temperature and pH levels...",
			Author:     seedAuthor("dye_researcher_42", "operative", olive.Colors{Olive: "#6B8E23", Branch: "#8B7355", Leaf: "#228B22"}, 3),
			CreatedAt:  ago(2 * day),
			UpdatedAt:  dyeReply2,
			Likes:      seedLikes("textile_expert", "color_scientist"),
			ReplyCount: 2,
			LastReply:  &LastReply{Author: "color_scientist", Timestamp: dyeReply2},
		},
		{
			ID:       "thread-d4e5f6",
			Category: CategoryResearch,
			Title:    "Quantum Botany: Temporal Leaf Pattern Analysis",
			Content: "I have been researching the correlation between quantum field fluctuations and botanical growth patterns. " +
				"My preliminary findings suggest that certain plant species exhibit temporal variance in their cellular structure when exposed to controlled electromagnetic fields...",
			Author:    seedAuthor("quantum_botanist", "contributor", olive.Colors{Olive: "#663399", Branch: "#A0522D", Leaf: "#32CD32"}, 2),
			CreatedAt: ago(5 * day),
			UpdatedAt: ago(5 * day),
			Likes:     seedLikes("physics_student", "plant_whisperer", "dye_researcher_42"),
		},
		{
			ID:       "thread-g7h8i9",
			Category: CategoryGeneral,
			Title:    "Welcome New Operatives - Introduce Yourself!",
			Content: "Hello everyone! This is a space for new operatives to introduce themselves to the community. " +
				"Share a bit about your background, research interests, or what brought you to the Galway Research Institute. " +
				"Remember to keep personal information minimal and focus on your academic or research pursuits.",
			Author:    seedAuthor("institute_moderator", "moderator", olive.Colors{Olive: "#2F2F2F", Branch: "#C0C0C0", Leaf: "#9ACD32"}, 5),
			CreatedAt: ago(7 * day),
			UpdatedAt: ago(7 * day),
			Likes:     seedLikes("new_operative_1", "fresh_researcher", "quantum_botanist"),
		},
	}

	replies := []Reply{
		{
			ID:       "reply-001",
			ThreadID: "thread-a1b2c3",
			Content: "Great research! I've been experimenting with natural dyes lately and found that cotton pre-treatment with mordants " +
				"significantly improves color fastness. Have you tried using iron or copper mordants?",
			Author:    seedAuthor("textile_expert", "contributor", olive.Colors{Olive: "#8B4513", Branch: "#CD853F", Leaf: "#006400"}, 2),
			CreatedAt: dyeReply1,
			Likes:     seedLikes("dye_researcher_42", "color_scientist"),
		},
		{
			ID:       "reply-002",
			ThreadID: "thread-a1b2c3",
			Content: "Interesting findings! What water temperature did you use for testing? I've noticed that hotter water (around 140°F) " +
				"gives better initial saturation but cooler water (100°F) might preserve the fabric integrity better over time.",
			Author:    seedAuthor("color_scientist", "operative", olive.Colors{Olive: "#2F2F2F", Branch: "#DEB887", Leaf: "#2E8B57"}, 4),
			CreatedAt: dyeReply2,
			Likes:     seedLikes("textile_expert"),
		},
	}
	return threads, replies
}
