package prefilter

import (
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		description string
		hashtags    []string
		wantReject  bool
		wantIn      string // substring expected in the reason
	}{
		{
			name:        "clean fail clip passes",
			description: "guy slips on ice in front of his whole family",
			hashtags:    []string{"#fail", "#funny"},
			wantReject:  false,
		},
		{
			name:        "serialized part number",
			description: "you won't believe what happened... Part 3",
			hashtags:    nil,
			wantReject:  true,
			wantIn:      "narrative/trend",
		},
		{
			name:        "pov phrasing",
			description: "POV: your roommate ate your leftovers",
			hashtags:    nil,
			wantReject:  true,
			wantIn:      "narrative/trend",
		},
		{
			name:        "narrative hashtag",
			description: "something wild happened at work",
			hashtags:    []string{"#storytime"},
			wantReject:  true,
			wantIn:      "narrative hashtag",
		},
		{
			name:        "dance challenge hashtag",
			description: "check this out",
			hashtags:    []string{"#dancechallenge"},
			wantReject:  true,
		},
		{
			name:        "dance keyword in description",
			description: "new dance trend everyone is doing",
			hashtags:    nil,
			wantReject:  true,
			wantIn:      "blacklisted keyword",
		},
		{
			name:        "promo keyword",
			description: "use code SAVE20 for a discount",
			hashtags:    nil,
			wantReject:  true,
			wantIn:      "blacklisted keyword",
		},
		{
			name:        "spam call to action",
			description: "hilarious moment, follow for more daily clips",
			hashtags:    nil,
			wantReject:  true,
			wantIn:      "spam pattern",
		},
		{
			name:        "too many hashtags",
			description: "funny cat",
			hashtags: []string{
				"#a", "#b", "#c", "#d", "#e", "#f", "#g", "#h",
				"#i", "#j", "#k", "#l", "#m", "#n", "#o", "#p",
			},
			wantReject: true,
			wantIn:     "too many hashtags",
		},
		{
			name:        "low effort exact phrase",
			description: "caption this",
			hashtags:    nil,
			wantReject:  true,
			wantIn:      "low-effort",
		},
		{
			name:        "empty description passes",
			description: "",
			hashtags:    []string{"#funny"},
			wantReject:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reject, reason := Check(tt.description, tt.hashtags)
			if reject != tt.wantReject {
				t.Errorf("Check() reject = %v, want %v (reason: %q)", reject, tt.wantReject, reason)
			}
			if tt.wantReject && reason == "" {
				t.Error("Check() rejected without a reason")
			}
			if !tt.wantReject && reason != "" {
				t.Errorf("Check() accepted but returned reason %q", reason)
			}
			if tt.wantIn != "" && !strings.Contains(reason, tt.wantIn) {
				t.Errorf("Check() reason = %q, want substring %q", reason, tt.wantIn)
			}
		})
	}
}

// The filter must be a pure function: same input, same answer, every time.
func TestCheckIdempotent(t *testing.T) {
	desc := "wait for the end, part 2"
	tags := []string{"#fail"}

	r1, reason1 := Check(desc, tags)
	r2, reason2 := Check(desc, tags)

	if r1 != r2 || reason1 != reason2 {
		t.Errorf("Check() not idempotent: (%v, %q) then (%v, %q)", r1, reason1, r2, reason2)
	}
	if !r1 {
		t.Error("expected narrative phrasing to be rejected")
	}
}
