package text

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

// Rule is one step of the normalization pipeline. Rules are pure and total:
// input they do not recognize is returned unchanged.
type Rule struct {
	Name  string
	Apply func(string) string
}

// Rules returns the normalization pipeline in application order. Later rules
// rely on the canonical forms produced by earlier ones (currency expansion
// expects thousands separators to be gone, decimal expansion expects money to
// be expanded already).
func Rules() []Rule {
	return []Rule{
		{Name: "punctuation", Apply: canonicalizePunctuation},
		{Name: "brackets", Apply: canonicalizeBrackets},
		{Name: "cjk-punctuation", Apply: replaceCJKPunctuation},
		{Name: "whitespace", Apply: collapseWhitespace},
		{Name: "abbreviations", Apply: expandAbbreviations},
		{Name: "yeah", Apply: replaceAll(yeahPattern, "ye'a")},
		{Name: "years-and-times", Apply: replaceFunc(yearTimePattern, expandYearOrTime)},
		{Name: "thousands-separators", Apply: replaceAll(thousandsCommaPattern, "")},
		{Name: "money", Apply: replaceFunc(moneyPattern, expandMoney)},
		{Name: "decimals", Apply: expandDecimals},
		{Name: "letters-and-ranges", Apply: normalizeLettersAndRanges},
	}
}

var pipeline = Rules()

// Normalize rewrites raw input text into the canonical form expected by the
// phonemizer: numbers, money, clock times and honorifics are spelled out and
// punctuation is reduced to ASCII. It never fails; unmatched text passes
// through verbatim.
func Normalize(s string) string {
	for _, r := range pipeline {
		s = r.Apply(s)
	}
	return strings.TrimSpace(s)
}

var (
	quoteReplacer = strings.NewReplacer(
		"—", ", ",
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
	)
	bracketReplacer = strings.NewReplacer(
		"«", `"`,
		"»", `"`,
		"“", `"`,
		"”", `"`,
	)
	parenReplacer = strings.NewReplacer("(", "«", ")", "»")
	cjkReplacer   = strings.NewReplacer(
		"、", ", ",
		"。", ". ",
		"！", "! ",
		"，", ", ",
		"：", ": ",
		"；", "; ",
		"？", "? ",
	)
)

func canonicalizePunctuation(s string) string {
	s = quoteReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// canonicalizeBrackets turns guillemets into plain quotes first so that the
// parentheses, rewritten to guillemets afterwards, stay distinguishable.
func canonicalizeBrackets(s string) string {
	return parenReplacer.Replace(bracketReplacer.Replace(s))
}

func replaceCJKPunctuation(s string) string {
	return cjkReplacer.Replace(s)
}

var (
	multiSpacePattern     = regexp.MustCompile(` {2,}`)
	spacesBetweenNewlines = regexp2.MustCompile(`(?<=\n) +(?=\n)`, regexp2.None)
)

func collapseWhitespace(s string) string {
	s = strings.Map(func(r rune) rune {
		if r != ' ' && r != '\n' && unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return replaceAll(spacesBetweenNewlines, "")(s)
}

var (
	doctorPattern = regexp2.MustCompile(`\b(?:D[Rr]|DR)\.(?= [A-Z])`, regexp2.None)
	misterPattern = regexp2.MustCompile(`\b(?:Mr\.|MR\.)(?= [A-Z])`, regexp2.None)
	missPattern   = regexp2.MustCompile(`\b(?:Ms\.|MS\.)(?= [A-Z])`, regexp2.None)
	missesPattern = regexp2.MustCompile(`\b(?:Mrs\.|MRS\.)(?= [A-Z])`, regexp2.None)
	etcPattern    = regexp2.MustCompile(`\betc\.(?! [A-Z])`, regexp2.None)
)

func expandAbbreviations(s string) string {
	s = replaceAll(doctorPattern, "Doctor")(s)
	s = replaceAll(misterPattern, "Mister")(s)
	s = replaceAll(missPattern, "Miss")(s)
	s = replaceAll(missesPattern, "Mrs")(s)
	return replaceAll(etcPattern, "etc")(s)
}

var yeahPattern = regexp2.MustCompile(`\b(?:yeah|yea)\b`, regexp2.IgnoreCase)

// Decimals are matched first so their digits are not mistaken for years;
// they are expanded later by expandDecimals.
var yearTimePattern = regexp2.MustCompile(
	`[0-9]*\.[0-9]+|\b[0-9]{4}s?\b|(?<!:)\b(?:[1-9]|1[0-2]):[0-5][0-9]\b(?!:)`,
	regexp2.None,
)

func expandYearOrTime(num string) string {
	if strings.Contains(num, ".") {
		return num
	}
	if hh, mm, ok := strings.Cut(num, ":"); ok {
		return expandClockTime(hh, mm)
	}
	return expandYear(num)
}

func expandClockTime(hh, mm string) string {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	switch {
	case m == 0:
		return strconv.Itoa(h) + " o'clock"
	case m < 10:
		return strconv.Itoa(h) + " oh " + strconv.Itoa(m)
	default:
		return strconv.Itoa(h) + " " + strconv.Itoa(m)
	}
}

// expandYear splits a four digit year into two spoken groups: 1984 -> "19 84",
// 1900 -> "19 hundred", 1905 -> "19 oh 5". Values below 1100 and x000-x009
// are read as plain numbers and left alone.
func expandYear(num string) string {
	year, err := strconv.Atoi(num[:4])
	if err != nil || year < 1100 || year%1000 < 10 {
		return num
	}

	left := num[:2]
	right, _ := strconv.Atoi(num[2:4])
	plural := ""
	if strings.HasSuffix(num, "s") {
		plural = "s"
	}

	if rem := year % 1000; rem >= 100 && rem <= 999 {
		switch {
		case right == 0:
			return left + " hundred" + plural
		case right < 10:
			return left + " oh " + strconv.Itoa(right) + plural
		}
	}
	return left + " " + strconv.Itoa(right) + plural
}

var thousandsCommaPattern = regexp2.MustCompile(`(?<=[0-9]),(?=[0-9])`, regexp2.None)

var moneyPattern = regexp2.MustCompile(
	`[$£][0-9]+(?:\.[0-9]+)?(?: hundred| thousand| (?:[bm]|tr)illion)*\b|[$£][0-9]+\.[0-9][0-9]?\b`,
	regexp2.None,
)

var lowerSuffixPattern = regexp.MustCompile(`[a-z]$`)

func expandMoney(m string) string {
	symbol, amount := splitCurrency(m)
	bill := "dollar"
	if symbol == "£" {
		bill = "pound"
	}

	if lowerSuffixPattern.MatchString(m) {
		return amount + " " + bill + "s"
	}

	whole, frac, hasFrac := strings.Cut(amount, ".")
	if !hasFrac {
		return amount + " " + bill + plural(whole != "1")
	}

	if len(frac) < 2 {
		frac += strings.Repeat("0", 2-len(frac))
	}
	cents, err := strconv.Atoi(frac)
	if err != nil {
		return m
	}

	coins := "cent" + plural(cents != 1)
	if symbol == "£" {
		coins = "pence"
		if cents == 1 {
			coins = "penny"
		}
	}
	return whole + " " + bill + plural(whole != "1") + " and " + strconv.Itoa(cents) + " " + coins
}

func splitCurrency(m string) (symbol, amount string) {
	for i, r := range m {
		return string(r), m[i+len(string(r)):]
	}
	return "", ""
}

func plural(many bool) string {
	if many {
		return "s"
	}
	return ""
}

var decimalPattern = regexp.MustCompile(`[0-9]*\.[0-9]+`)

// expandDecimals reads the fractional part digit by digit: 3.14 -> "3 point 1 4".
func expandDecimals(s string) string {
	return decimalPattern.ReplaceAllStringFunc(s, func(num string) string {
		whole, frac, _ := strings.Cut(num, ".")
		return whole + " point " + strings.Join(strings.Split(frac, ""), " ")
	})
}

var (
	digitRangePattern    = regexp2.MustCompile(`(?<=[0-9])-(?=[0-9])`, regexp2.None)
	digitCapitalSPattern = regexp2.MustCompile(`(?<=[0-9])S`, regexp2.None)
	consonantPossessive  = regexp2.MustCompile(`(?<=[BCDFGHJ-NP-TV-Z])'?s\b`, regexp2.None)
	xPossessivePattern   = regexp2.MustCompile(`(?<=X')S\b`, regexp2.None)
	initialismPattern    = regexp.MustCompile(`(?:[A-Za-z]\.){2,} [a-z]`)
	dotBetweenLetters    = regexp2.MustCompile(`(?<=[A-Z])\.(?=[A-Z])`, regexp2.IgnoreCase)
)

func normalizeLettersAndRanges(s string) string {
	s = replaceAll(digitRangePattern, " to ")(s)
	s = replaceAll(digitCapitalSPattern, " S")(s)
	s = replaceAll(consonantPossessive, "'S")(s)
	s = replaceAll(xPossessivePattern, "s")(s)
	s = initialismPattern.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ReplaceAll(m, ".", "-")
	})
	return replaceAll(dotBetweenLetters, "-")(s)
}

func replaceAll(re *regexp2.Regexp, repl string) func(string) string {
	return func(s string) string {
		out, err := re.Replace(s, repl, -1, -1)
		if err != nil {
			return s
		}
		return out
	}
}

func replaceFunc(re *regexp2.Regexp, fn func(string) string) func(string) string {
	return func(s string) string {
		out, err := re.ReplaceFunc(s, func(m regexp2.Match) string {
			return fn(m.String())
		}, -1, -1)
		if err != nil {
			return s
		}
		return out
	}
}
