package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"estatenexy/models"
)

type stubSource struct {
	slots map[string]string
	err   error
	calls int
}

func (s *stubSource) ExtractSlots(ctx context.Context, text string) (map[string]string, error) {
	s.calls++
	return s.slots, s.err
}

func TestExtractLocalParsers(t *testing.T) {
	e := New(nil, nil)

	got := e.Extract(context.Background(), "looking for a villa in dubai marina around 750k to invest", models.SlotMap{})

	assert.Equal(t, "villa", got[models.SlotPropertyType])
	assert.Equal(t, "dubai marina", got[models.SlotLocation])
	assert.Equal(t, "750000", got[models.SlotBudgetMin])
	assert.Equal(t, "investment", got[models.SlotGoal])
}

func TestExtractSkipsKnownSlots(t *testing.T) {
	e := New(nil, nil)
	known := models.SlotMap{
		models.SlotPropertyType: "apartment",
		models.SlotBudgetMin:    "500000",
	}

	got := e.Extract(context.Background(), "actually a villa for 900k", known)

	_, hasType := got[models.SlotPropertyType]
	_, hasBudget := got[models.SlotBudgetMin]
	assert.False(t, hasType)
	assert.False(t, hasBudget)
}

func TestExtractInferenceFillsGaps(t *testing.T) {
	src := &stubSource{slots: map[string]string{
		models.SlotLocation: "creek harbour",
		"bedrooms":          "3",
	}}
	e := New(src, nil)

	got := e.Extract(context.Background(), "somewhere near the water, 750k", models.SlotMap{})

	assert.Equal(t, "750000", got[models.SlotBudgetMin])
	assert.Equal(t, "creek harbour", got[models.SlotLocation])
	// Unknown keys from inference are dropped.
	_, hasBedrooms := got["bedrooms"]
	assert.False(t, hasBedrooms)
}

func TestExtractInferenceNeverOverridesLocalParse(t *testing.T) {
	src := &stubSource{slots: map[string]string{
		models.SlotBudgetMin: "999999",
	}}
	e := New(src, nil)

	got := e.Extract(context.Background(), "budget 750k", models.SlotMap{})

	assert.Equal(t, "750000", got[models.SlotBudgetMin])
}

func TestExtractInferenceFailureDegradesToLocal(t *testing.T) {
	src := &stubSource{err: errors.New("timeout")}
	e := New(src, nil)

	got := e.Extract(context.Background(), "an apartment in downtown", models.SlotMap{})

	assert.Equal(t, "apartment", got[models.SlotPropertyType])
	assert.Equal(t, "downtown", got[models.SlotLocation])
	assert.Equal(t, 1, src.calls)
}

func TestExtractEmptyTextReturnsEmptyMap(t *testing.T) {
	src := &stubSource{}
	e := New(src, nil)

	got := e.Extract(context.Background(), "   ", models.SlotMap{})

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, src.calls)
}
