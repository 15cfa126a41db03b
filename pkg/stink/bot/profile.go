// Package bot – profile.go implements coarse demographic inference used
// during onboarding: a gender guess from a closed list of given names,
// gender resolution from clarification keywords, and an age bracket
// guess from standalone two-digit tokens.
package bot

import (
	"regexp"
	"strconv"
	"strings"
)

// Reference given-name lists for the gender guess. Deliberately small
// and closed: a miss returns unknown, which routes the user into the
// gender clarification sub-flow.
var (
	maleNames = []string{
		"james", "john", "robert", "michael", "william", "david",
		"richard", "joseph", "thomas", "charles", "daniel", "matthew",
		"anthony", "mark", "donald", "steven", "paul", "andrew",
		"joshua", "kenneth", "kevin", "brian", "george", "timothy",
		"carlos", "pedro", "lucas", "gabriel", "rafael", "bruno",
	}
	femaleNames = []string{
		"mary", "patricia", "jennifer", "linda", "elizabeth", "barbara",
		"susan", "jessica", "sarah", "karen", "lisa", "nancy",
		"betty", "margaret", "sandra", "ashley", "kimberly", "emily",
		"donna", "michelle", "carol", "amanda", "amy", "melissa",
		"maria", "ana", "julia", "beatriz", "camila", "fernanda",
	}
)

// GuessGender matches a candidate name against the reference lists,
// case-insensitively. Names outside both lists return unknown.
func GuessGender(name string) Gender {
	candidate := strings.ToLower(strings.TrimSpace(name))
	// Match on the first word so "John Smith" still resolves.
	if i := strings.IndexByte(candidate, ' '); i > 0 {
		candidate = candidate[:i]
	}
	for _, n := range maleNames {
		if candidate == n {
			return GenderMale
		}
	}
	for _, n := range femaleNames {
		if candidate == n {
			return GenderFemale
		}
	}
	return GenderUnknown
}

// ResolveGenderKeyword resolves gender from a clarification answer.
// First matching keyword wins: "boy" before "girl" before "skip".
// Anything else resolves to other.
func ResolveGenderKeyword(text string) Gender {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "boy"):
		return GenderMale
	case strings.Contains(t, "girl"):
		return GenderFemale
	case strings.Contains(t, "skip"):
		return GenderPreferNot
	default:
		return GenderOther
	}
}

// twoDigitToken matches a standalone two-digit number.
var twoDigitToken = regexp.MustCompile(`\b[0-9]{2}\b`)

// ageBrackets lists the inclusive bracket ranges, checked in order.
var ageBrackets = []struct {
	min, max int
	bracket  AgeBracket
}{
	{13, 19, AgeTeen},
	{20, 29, AgeYoungAdult},
	{30, 45, AgeAdult},
	{46, 65, AgeMiddleAged},
	{66, 100, AgeSenior},
}

// GuessAgeBracket scans text for the first standalone two-digit token
// and maps it to the bracket containing it. The first token wins; there
// is no aggregation across matches. No match, or a value outside every
// bracket, returns unknown.
func GuessAgeBracket(text string) AgeBracket {
	match := twoDigitToken.FindString(text)
	if match == "" {
		return AgeUnknown
	}
	age, err := strconv.Atoi(match)
	if err != nil {
		return AgeUnknown
	}
	for _, b := range ageBrackets {
		if age >= b.min && age <= b.max {
			return b.bracket
		}
	}
	return AgeUnknown
}
