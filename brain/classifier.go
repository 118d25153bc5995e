package brain

import (
	"regexp"
	"strings"

	"estatenexy/models"
)

// Intent is the result of the priority-ordered triage that runs before a
// state commits to its primary transition. Order matters: a question is
// never treated as a failed phone validation.
type Intent int

const (
	IntentUnrecognized Intent = iota
	IntentQuestion
	IntentMediaRequest
	IntentSlotCandidate
)

// ClassifyIntent triages inbound free text. Priority: question, media
// request, slot candidate, unrecognized.
func ClassifyIntent(text string, candidates models.SlotMap) Intent {
	switch {
	case IsQuestion(text):
		return IntentQuestion
	case IsMediaRequest(text):
		return IntentMediaRequest
	case len(candidates) > 0:
		return IntentSlotCandidate
	default:
		if _, ok := ParsePhone(text); ok {
			return IntentSlotCandidate
		}
		return IntentUnrecognized
	}
}

var interrogatives = []string{
	// en
	"what", "how", "when", "where", "why", "who", "which", "can ", "could ", "do you", "does", "is there", "are there",
	// fa
	"چی", "چه", "چرا", "کی", "کجا", "چطور", "چند", "آیا",
	// ar
	"ما ", "ماذا", "لماذا", "متى", "أين", "اين", "كيف", "كم ", "هل",
	// ru
	"что", "как", "когда", "где", "почему", "сколько", "можно ли", "есть ли",
}

// IsQuestion reports whether text carries interrogative markers.
func IsQuestion(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	if strings.Contains(t, "?") || strings.Contains(t, "؟") {
		return true
	}
	for _, w := range interrogatives {
		if strings.HasPrefix(t, w) {
			return true
		}
	}
	return false
}

var mediaKeywords = []string{
	// en
	"photo", "photos", "picture", "pictures", "pics", "image", "images", "video", "videos", "show me", "floor plan", "brochure",
	// fa
	"عکس", "تصویر", "ویدیو", "ویدئو", "نشونم بده", "نشانم بده",
	// ar
	"صور", "صورة", "فيديو", "مخطط",
	// ru
	"фото", "фотографии", "картинки", "видео", "покажите", "покажи", "планировк",
}

// IsMediaRequest reports whether text asks to see listings media.
func IsMediaRequest(text string) bool {
	t := strings.ToLower(text)
	for _, w := range mediaKeywords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

var phonePattern = regexp.MustCompile(`\+?[0-9][0-9 ()\-.]{5,}[0-9]`)

// ParsePhone extracts and normalizes a phone number from free text.
// Valid numbers carry 7 to 15 digits, with an optional leading plus.
func ParsePhone(text string) (string, bool) {
	match := phonePattern.FindString(text)
	if match == "" {
		return "", false
	}

	var b strings.Builder
	for i, r := range match {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	digits := strings.TrimPrefix(normalized, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}
	return normalized, true
}

var negativeKeywords = []string{
	// en
	"angry", "terrible", "awful", "worst", "scam", "fraud", "lawyer", "complaint", "stop messaging", "leave me alone", "unsubscribe",
	// fa
	"افتضاح", "شکایت", "کلاهبرداری", "مزاحم نشو",
	// ar
	"احتيال", "نصب", "محامي", "شكوى", "توقف عن",
	// ru
	"ужасно", "обман", "мошенни", "жалоба", "хватит", "отстаньте", "прекратите",
}

// HasNegativeSentiment reports strong negative sentiment that should
// escalate the conversation to a human.
func HasNegativeSentiment(text string) bool {
	t := strings.ToLower(text)
	for _, w := range negativeKeywords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

var bookingKeywords = []string{
	// en
	"book", "appointment", "consultation", "call me", "schedule", "viewing",
	// fa
	"رزرو", "مشاوره", "تماس بگیرید", "بازدید",
	// ar
	"موعد", "استشارة", "اتصل بي", "معاينة",
	// ru
	"записаться", "запишите", "консультаци", "позвоните", "просмотр",
}

// HasBookingIntent reports that the lead asked to be connected with a
// consultant.
func HasBookingIntent(text string) bool {
	t := strings.ToLower(text)
	for _, w := range bookingKeywords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}
