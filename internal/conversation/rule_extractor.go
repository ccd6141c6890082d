package conversation

import (
	"context"
	"regexp"
	"strings"

	"github.com/wolfman30/dental-concierge/internal/language"
)

type intentRule struct {
	intent   Intent
	keywords []string
}

// Checked in order; the first rule with a matching keyword wins.
var intentRules = []intentRule{
	{IntentCancelAppointment, []string{"cancel", "إلغاء", "الغاء", "ألغي", "الغي"}},
	{IntentRescheduleAppointment, []string{"reschedule", "move my appointment", "change my appointment", "تأجيل", "تعديل الموعد", "تغيير الموعد", "أجل موعد"}},
	{IntentBookAppointment, []string{"book", "appointment", "schedule", "حجز", "احجز", "أحجز", "موعد"}},
	{IntentOrthodonticsInquiry, []string{"braces", "orthodont", "aligner", "تقويم"}},
	{IntentFollowUp, []string{"follow-up", "follow up", "followup", "متابعة", "متابعه"}},
	{IntentReminderCall, []string{"remind", "تذكير"}},
	{IntentInquiry, []string{"price", "cost", "how much", "services", "do you offer", "سعر", "أسعار", "بكم", "خدمات"}},
}

var services = []struct {
	name     string
	keywords []string
}{
	{"cleaning", []string{"cleaning", "clean", "تنظيف"}},
	{"whitening", []string{"whitening", "تبييض"}},
	{"orthodontics", []string{"braces", "orthodont", "aligner", "تقويم"}},
	{"implants", []string{"implant", "زراعة", "زرع"}},
	{"filling", []string{"filling", "حشوة", "حشو"}},
	{"root canal", []string{"root canal", "عصب"}},
	{"check-up", []string{"check-up", "checkup", "check up", "فحص"}},
}

var (
	uuidPattern       = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	isoDatePattern    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	relativeDateWords = regexp.MustCompile(`(?i)\b(today|tomorrow)\b|(اليوم|غداً|غدا|بكرة|بكرا)`)
	otpPattern        = regexp.MustCompile(`(?i)(?:\botp|\bcode|رمز التحقق|رمز)\s*(?:is)?\s*[:#]?\s*(\d{4,6})\b`)
	clockPatterns     = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?\s*(?:am|pm))\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2})\b`),
		regexp.MustCompile(`(?i)(?:\bat\s+|الساعة\s*)(\d{1,2}(?::\d{2})?(?:\s*(?:صباحاً|صباحا|مساءً|مساء))?)`),
		regexp.MustCompile(`(\d{1,2}(?::\d{2})?\s*(?:صباحاً|صباحا|مساءً|مساء))`),
	}
	latinDoctorPattern  = regexp.MustCompile(`(?:\b[Dd]r\.?|\b[Dd]octor)\s+(\p{Lu}[\p{L}'-]*(?:\s+\p{Lu}[\p{L}'-]*)?)`)
	arabicDoctorPattern = regexp.MustCompile(`(?:الدكتورة|الدكتور|دكتورة|دكتور|د\.)\s*(\p{Arabic}+(?:\s+\p{Arabic}+)?)`)
	latinNamePattern    = regexp.MustCompile(`(?i)\b(?:my name is|name is|name:)\s*(\p{L}+(?:\s+\p{L}+)?)`)
	arabicNamePattern   = regexp.MustCompile(`اسمي\s+(\p{Arabic}+(?:\s+\p{Arabic}+)?)`)
	latinBranchPattern  = regexp.MustCompile(`(?i)\b(\p{L}+)\s+branch\b`)
	arabicBranchPattern = regexp.MustCompile(`فرع\s+(\p{Arabic}+)`)
)

// stopwords may follow a captured name but are never part of it.
var stopwords = map[string]struct{}{
	"and": {}, "at": {}, "on": {}, "in": {}, "for": {}, "tomorrow": {}, "today": {}, "please": {},
	"في": {}, "يوم": {}, "الساعة": {}, "غدا": {}, "غداً": {}, "اليوم": {}, "بفرع": {}, "فرع": {}, "و": {}, "من": {},
}

// RuleExtractor is a deterministic keyword and pattern extractor used
// offline and in tests. It reads only the latest user message.
type RuleExtractor struct {
	branches []string
}

// NewRuleExtractor recognizes the given branch names in addition to the
// "<name> branch" and "فرع <name>" forms.
func NewRuleExtractor(branches ...string) *RuleExtractor {
	return &RuleExtractor{branches: branches}
}

func (e *RuleExtractor) Extract(ctx context.Context, history []ChatMessage) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	var text string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			text = history[i].Content
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		return Extraction{}, nil
	}

	var out Extraction
	lower := strings.ToLower(text)
	for _, rule := range intentRules {
		if containsAny(lower, rule.keywords) {
			out.Intent = rule.intent
			break
		}
	}

	rest := language.NormalizeDigits(text)
	take := func(p *regexp.Regexp, group int) string {
		m := p.FindStringSubmatchIndex(rest)
		if m == nil {
			return ""
		}
		value := rest[m[2*group]:m[2*group+1]]
		rest = rest[:m[0]] + " " + rest[m[1]:]
		return strings.TrimSpace(value)
	}

	ents := &out.Entities
	ents.Set("booking_id", take(uuidPattern, 0))
	ents.Set("email", take(emailPattern, 0))
	ents.Set("otp", take(otpPattern, 1))
	date := take(isoDatePattern, 0)
	if date == "" {
		date = strings.ToLower(take(relativeDateWords, 0))
	}
	ents.Set("appointment_date", date)
	for _, p := range clockPatterns {
		if clock := take(p, 1); clock != "" {
			ents.Set("appointment_time", clock)
			break
		}
	}
	ents.Set("phone_number", take(phonePattern, 0))
	ents.Set("doctor_name", trimStopwords(firstNonEmpty(take(latinDoctorPattern, 1), take(arabicDoctorPattern, 1))))
	ents.Set("customer_name", trimStopwords(firstNonEmpty(take(latinNamePattern, 1), take(arabicNamePattern, 1))))
	ents.Set("clinic_branch", e.branch(rest))
	for _, s := range services {
		if containsAny(lower, s.keywords) {
			ents.Set("service_type", s.name)
			break
		}
	}
	return out, nil
}

func (e *RuleExtractor) branch(text string) string {
	lower := strings.ToLower(text)
	for _, b := range e.branches {
		if b != "" && strings.Contains(lower, strings.ToLower(b)) {
			return b
		}
	}
	if m := latinBranchPattern.FindStringSubmatch(text); m != nil {
		if _, stop := stopwords[strings.ToLower(m[1])]; !stop && !strings.EqualFold(m[1], "the") {
			return m[1]
		}
	}
	if m := arabicBranchPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func trimStopwords(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if _, stop := stopwords[strings.ToLower(w)]; stop {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
