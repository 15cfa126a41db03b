package bot

import "testing"

func TestGuessGender(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Gender
	}{
		{"male name", "John", GenderMale},
		{"female name", "Amy", GenderFemale},
		{"case insensitive", "MARIA", GenderFemale},
		{"first word of full name", "John Smith", GenderMale},
		{"surrounding whitespace", "  lucas  ", GenderMale},
		{"name outside both lists", "Pat", GenderUnknown},
		{"empty input", "", GenderUnknown},
		{"not a name at all", "hello there", GenderUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GuessGender(tt.input); got != tt.expected {
				t.Errorf("GuessGender(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolveGenderKeyword(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Gender
	}{
		{"boy keyword", "it's a boy name", GenderMale},
		{"girl keyword", "it's a girl name", GenderFemale},
		{"skip keyword", "skip please", GenderPreferNot},
		{"no keyword", "none of your business", GenderOther},
		{"priority boy over girl over skip", "boy girl skip", GenderMale},
		{"priority girl over skip", "girl or skip", GenderFemale},
		{"case insensitive", "BOY", GenderMale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveGenderKeyword(tt.input); got != tt.expected {
				t.Errorf("ResolveGenderKeyword(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGuessAgeBracket(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected AgeBracket
	}{
		{"teen", "I'm 16", AgeTeen},
		{"young adult", "just turned 25", AgeYoungAdult},
		{"adult", "I am 45 today", AgeAdult},
		{"middle aged", "I'm 50 now", AgeMiddleAged},
		{"senior", "I am 66 today", AgeSenior},
		{"below every bracket", "I am 12 today", AgeUnknown},
		{"no digits", "no age here", AgeUnknown},
		{"first match wins", "from 19 to 30", AgeTeen},
		{"digits inside larger number ignored", "born in 1985", AgeUnknown},
		{"single digit ignored", "I'm 9", AgeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GuessAgeBracket(tt.input); got != tt.expected {
				t.Errorf("GuessAgeBracket(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
