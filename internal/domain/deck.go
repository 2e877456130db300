package domain

// SectionSlugs lists the tracked pitch deck sections in page order. The hero
// carries no view tracking, only CTAs.
var SectionSlugs = []string{
	"market",
	"global-comparison",
	"how-it-works",
	"products",
	"tokenomics",
	"investment",
	"growth",
	"competitive",
	"roadmap",
	"team",
	"risks",
	"closing",
}

var sectionSet = func() map[string]bool {
	m := make(map[string]bool, len(SectionSlugs))
	for _, s := range SectionSlugs {
		m[s] = true
	}
	return m
}()

func IsValidSection(slug string) bool {
	return sectionSet[slug]
}

// CompletionRate maps a distinct-section count to a 0..1 fraction of the deck.
func CompletionRate(distinctSections int) float32 {
	if distinctSections <= 0 {
		return 0
	}
	if distinctSections >= len(SectionSlugs) {
		return 1
	}
	return float32(distinctSections) / float32(len(SectionSlugs))
}
