// Package extractor turns raw inbound text (messages, voice transcripts,
// image captions) into candidate slot values. Local parsers run first;
// the external inference collaborator fills whatever they missed. Any
// inference failure degrades to the local-only result, so extraction
// never blocks a conversation turn.
package extractor

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"estatenexy/models"
)

// SlotSource is the external entity-extraction collaborator. Errors and
// malformed payloads are treated as "no extraction".
type SlotSource interface {
	ExtractSlots(ctx context.Context, text string) (map[string]string, error)
}

var knownSlotKeys = map[string]struct{}{
	models.SlotGoal:         {},
	models.SlotBudgetMin:    {},
	models.SlotBudgetMax:    {},
	models.SlotPropertyType: {},
	models.SlotLocation:     {},
}

type Extractor struct {
	source SlotSource
	logger *logrus.Entry
}

func New(source SlotSource, logger *logrus.Entry) *Extractor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Extractor{source: source, logger: logger}
}

// Extract returns candidate slot values found in text. Slots already
// present in known are skipped so repeated turns never re-ask or
// overwrite them. The result may be empty; it is never nil.
func (e *Extractor) Extract(ctx context.Context, text string, known models.SlotMap) models.SlotMap {
	candidates := models.SlotMap{}
	if strings.TrimSpace(text) == "" {
		return candidates
	}

	e.extractLocal(text, known, candidates)

	if e.source != nil {
		remote, err := e.source.ExtractSlots(ctx, text)
		if err != nil {
			e.logger.WithError(err).Debug("inference extraction failed, using local parse only")
		} else {
			for k, v := range remote {
				if _, ok := knownSlotKeys[k]; !ok {
					continue
				}
				if v == "" || known[k] != "" || candidates[k] != "" {
					continue
				}
				candidates[k] = v
			}
		}
	}

	return candidates
}

func (e *Extractor) extractLocal(text string, known, out models.SlotMap) {
	if known[models.SlotBudgetMin] == "" {
		if min, max, ok := ParseBudget(text); ok {
			out[models.SlotBudgetMin] = min
			if max != "" {
				out[models.SlotBudgetMax] = max
			}
		}
	}
	if known[models.SlotPropertyType] == "" {
		if pt := parsePropertyType(text); pt != "" {
			out[models.SlotPropertyType] = pt
		}
	}
	if known[models.SlotGoal] == "" {
		if g := parseGoal(text); g != "" {
			out[models.SlotGoal] = g
		}
	}
	if known[models.SlotLocation] == "" {
		if loc := parseLocation(text); loc != "" {
			out[models.SlotLocation] = loc
		}
	}
}

var propertyTypeKeywords = map[string]string{
	"apartment": "apartment", "flat": "apartment", "آپارتمان": "apartment", "شقة": "apartment", "квартир": "apartment",
	"studio": "studio", "استودیو": "studio", "استوديو": "studio", "студи": "studio",
	"villa": "villa", "ویلا": "villa", "فيلا": "villa", "вилл": "villa",
	"townhouse": "townhouse", "تاون هاوس": "townhouse", "таунхаус": "townhouse",
	"penthouse": "penthouse", "پنت هاوس": "penthouse", "بنتهاوس": "penthouse", "пентхаус": "penthouse",
	"duplex": "duplex", "دوبلکس": "duplex", "دوبلكس": "duplex", "дуплекс": "duplex",
	"office": "office", "دفتر": "office", "مكتب": "office", "офис": "office",
	"land": "land", "plot": "land", "زمین": "land", "أرض": "land", "участок": "land",
}

func parsePropertyType(text string) string {
	t := strings.ToLower(text)
	for kw, canonical := range propertyTypeKeywords {
		if strings.Contains(t, kw) {
			return canonical
		}
	}
	return ""
}

var goalKeywords = map[string]string{
	"invest": "investment", "سرمایه": "investment", "استثمار": "investment", "инвест": "investment",
	"living": "living", "live in": "living", "for myself": "living", "family": "living",
	"زندگی": "living", "للسكن": "living", "سكن": "living", "для жизни": "living", "для себя": "living",
	"residency": "residency", "visa": "residency", "citizenship": "residency",
	"اقامت": "residency", "إقامة": "residency", "резидент": "residency", "внж": "residency",
}

func parseGoal(text string) string {
	t := strings.ToLower(text)
	for kw, canonical := range goalKeywords {
		if strings.Contains(t, kw) {
			return canonical
		}
	}
	return ""
}

// knownAreas is a seed list of markets the engine recognizes without
// inference help; anything else is left for the collaborator.
var knownAreas = []string{
	"dubai marina", "business bay", "downtown", "palm jumeirah", "jvc",
	"dubai hills", "creek harbour", "dubai", "abu dhabi", "sharjah",
	"ras al khaimah", "دبي", "دبی", "ابوظبي", "дубай", "абу-даби",
}

func parseLocation(text string) string {
	t := strings.ToLower(text)
	for _, area := range knownAreas {
		if strings.Contains(t, area) {
			return area
		}
	}
	return ""
}
