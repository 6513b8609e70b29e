// Package prefilter rejects obviously unusable clips before any scoring
// call is made.
//
// Go Pattern: This is a pure function over item text and hashtags — no
// database, no network, no hidden state. Calling it twice on the same
// input always yields the same answer, which makes it trivially testable
// and safe to re-run on a batch.
//
// The filter exists to save money: every item it rejects is one LLM call
// we never pay for, and the patterns below cover content the scoring
// oracle would reject anyway (dance, ads, thirst traps, serialized
// storytelling that needs context a compilation can't provide).
package prefilter

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxHashtags is the spam ceiling: more hashtags than this and the clip
// is treated as engagement bait regardless of its content.
const MaxHashtags = 15

// trendPatterns match serialized or narrative phrasing — content that
// depends on dialogue, buildup, or an earlier part, which dies when cut
// into a compilation between unrelated clips.
var trendPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bpart\s*\d+\b`),
	regexp.MustCompile(`(?i)\bpt\.?\s*\d+\b`),
	regexp.MustCompile(`(?i)\bstorytime\b`),
	regexp.MustCompile(`(?i)\bpov\s*:`),
	regexp.MustCompile(`(?i)wait\s+(for|till|until)\s+the\s+end`),
	regexp.MustCompile(`(?i)watch\s+(till|until)\s+the\s+end`),
	regexp.MustCompile(`(?i)\bto\s+be\s+continued\b`),
	regexp.MustCompile(`(?i)\bfull\s+(video|story)\s+(on|in|at)\b`),
}

// narrativeHashtags are tags that mark serialized/story content even when
// the description itself looks harmless.
var narrativeHashtags = map[string]bool{
	"storytime":     true,
	"story":         true,
	"pov":           true,
	"part1":         true,
	"part2":         true,
	"series":        true,
	"miniseries":    true,
	"tobecontinued": true,
	"storytelling":  true,
}

// rejectKeywords are content categories structurally excluded from the
// pipeline: dance, thirst traps, ads, lip sync, lifestyle. Checked as
// substrings of the lowercased description.
var rejectKeywords = []string{
	// Dance content
	"dance", "dancing", "dancer", "choreography", "choreo",
	"twerk", "twerking", "shuffle", "shuffling", "dance challenge",
	// Thirst trap / model content
	"thirst", "thirsttrap", "hot girl", "hotgirl", "baddie",
	"modeling", "photoshoot", "bikini", "swimsuit",
	"outfit check", "outfitcheck", "ootd", "grwm", "getreadywithme",
	"fit check", "fitcheck", "glow up", "glowup",
	// Advertisement / promotional
	"sponsored", "sponsor", "promo", "promotion",
	"discount", "buy now", "link in bio", "linkinbio",
	"shop now", "shopnow", "use code", "usecode", "coupon",
	"affiliate", "brand deal", "unboxing", "haul",
	// Music / lip sync focused
	"lip sync", "lipsync", "duet", "singing", "cover song", "coversong",
	// Lifestyle / beauty focused
	"makeup", "skincare", "beauty", "fashion",
	"aesthetic", "vlog", "dayinmylife",
}

// rejectHashtags is the hashtag form of the hard-reject list (tags are
// compared without the leading '#', lowercased).
var rejectHashtags = map[string]bool{
	"dance": true, "dancing": true, "dancer": true, "choreography": true,
	"twerk": true, "shuffle": true, "dancechallenge": true,
	"thirsttrap": true, "hotgirl": true, "baddie": true, "model": true,
	"ootd": true, "grwm": true, "fitcheck": true, "outfitcheck": true,
	"ad": true, "sponsored": true, "promo": true, "linkinbio": true,
	"makeup": true, "skincare": true, "beauty": true, "fashion": true,
	"aesthetic": true, "lipsync": true, "duet": true, "singing": true,
}

// spamPatterns match promotional call-to-action phrasing.
var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)follow\s+(me|us|for\s+more)`),
	regexp.MustCompile(`(?i)like\s+(and|&)\s+(follow|subscribe)`),
	regexp.MustCompile(`(?i)check\s+(out\s+)?(my|our)\s+(bio|page|profile|channel)`),
	regexp.MustCompile(`(?i)\bdm\s+(me|us)\b`),
	regexp.MustCompile(`(?i)giveaway`),
	regexp.MustCompile(`(?i)free\s+(shipping|gift)`),
}

// lowEffortPhrases are exact low-effort markers: if the whole trimmed
// description is one of these, there is no content to score.
var lowEffortPhrases = map[string]bool{
	"follow me":          true,
	"follow for more":    true,
	"like and subscribe": true,
	"first video":        true,
	"no caption":         true,
	"caption this":       true,
	"rate this":          true,
}

// Check decides whether an item should be rejected before scoring.
// The checks run in a fixed order and short-circuit on the first match;
// the returned reason names the check that fired.
func Check(description string, hashtags []string) (reject bool, reason string) {
	desc := strings.ToLower(strings.TrimSpace(description))

	// 1. Trend/narrative phrasing in the description.
	for _, p := range trendPatterns {
		if p.MatchString(desc) {
			return true, fmt.Sprintf("narrative/trend pattern: %s", p.String())
		}
	}

	// 2. Narrative hashtags.
	for _, tag := range hashtags {
		if narrativeHashtags[normalizeTag(tag)] {
			return true, fmt.Sprintf("narrative hashtag: #%s", normalizeTag(tag))
		}
	}

	// 3. Hard-reject keywords (description) and hashtags.
	for _, kw := range rejectKeywords {
		if strings.Contains(desc, kw) {
			return true, fmt.Sprintf("blacklisted keyword: %q", kw)
		}
	}
	for _, tag := range hashtags {
		if rejectHashtags[normalizeTag(tag)] {
			return true, fmt.Sprintf("blacklisted hashtag: #%s", normalizeTag(tag))
		}
	}

	// 4. Spam call-to-action phrasing.
	for _, p := range spamPatterns {
		if p.MatchString(desc) {
			return true, fmt.Sprintf("spam pattern: %s", p.String())
		}
	}

	// 5. Hashtag-count ceiling.
	if len(hashtags) > MaxHashtags {
		return true, fmt.Sprintf("too many hashtags: %d > %d", len(hashtags), MaxHashtags)
	}

	// 6. Exact low-effort phrases.
	if lowEffortPhrases[desc] {
		return true, fmt.Sprintf("low-effort description: %q", desc)
	}

	return false, ""
}

// normalizeTag strips the leading '#' and lowercases a hashtag.
func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(tag, "#"))
}
