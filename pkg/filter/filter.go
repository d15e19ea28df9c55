// Package filter implements the synchronous content-policy check applied
// to turn arguments and topic comments before persistence.
package filter

import "regexp"

// pattern pairs a compiled expression with the reason reported on match.
type pattern struct {
	re     *regexp.Regexp
	reason string
}

// Filter checks text against an ordered list of blocked patterns.
// First match wins.
type Filter struct {
	patterns []pattern
}

// blockedPatterns covers English and Korean incitement, hate speech,
// weapon/attack instructions, and exploitation.
var blockedPatterns = []struct {
	expr   string
	reason string
}{
	// English hate speech
	{`(?i)\b(?:kill\s+all|exterminate|genocide)\b`, "Incitement to violence/genocide"},
	{`(?i)\b(?:racial\s+supremacy|white\s+power|ethnic\s+cleansing)\b`, "Hate speech (supremacism)"},
	{`(?i)\b(?:gas\s+the|lynch|enslave)\s+\w+`, "Hate speech (violence against groups)"},
	// English violence
	{`(?i)\b(?:how\s+to\s+(?:make\s+a\s+bomb|build\s+(?:a\s+)?weapon|synthesize\s+poison))\b`, "Illegal activity instructions"},
	{`(?i)\b(?:terrorist\s+attack\s+plan|mass\s+(?:shooting|murder)\s+guide)\b`, "Terrorism-related content"},
	// English illegal activity
	{`(?i)\b(?:how\s+to\s+(?:hack|steal\s+identity|launder\s+money|traffic\s+(?:drugs|humans)))\b`, "Illegal activity instructions"},
	{`(?i)\b(?:child\s+(?:porn|exploitation|abuse))\b`, "Child exploitation content"},
	// Korean hate speech
	{`(?:인종\s*청소|민족\s*말살|학살\s*해야)`, "혐오 발언 (인종/민족)"},
	{`(?:여성\s*혐오|남성\s*혐오|장애인\s*혐오).*(?:죽|없애|제거)`, "혐오 발언 (차별적 폭력)"},
	// Korean violence
	{`(?:폭탄\s*(?:만들|제조)|무기\s*제작|독극물\s*합성)`, "불법 활동 지침"},
	{`(?:테러\s*계획|총기\s*난사\s*방법)`, "테러 관련 콘텐츠"},
	// Korean illegal activity
	{`(?:마약\s*(?:제조|거래)|인신\s*매매|자금\s*세탁\s*방법)`, "불법 활동 지침"},
	{`(?:아동\s*(?:포르노|착취|학대))`, "아동 착취 콘텐츠"},
}

// New compiles the blocked pattern list.
func New() *Filter {
	f := &Filter{patterns: make([]pattern, 0, len(blockedPatterns))}
	for _, p := range blockedPatterns {
		f.patterns = append(f.patterns, pattern{
			re:     regexp.MustCompile(p.expr),
			reason: p.reason,
		})
	}
	return f
}

// Check returns (true, "") for safe text or (false, reason) for the
// first matching blocked pattern.
func (f *Filter) Check(text string) (bool, string) {
	for _, p := range f.patterns {
		if p.re.MatchString(text) {
			return false, p.reason
		}
	}
	return true, ""
}
