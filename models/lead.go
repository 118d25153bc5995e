package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ConversationState is the Brain's finite-state-machine position for a lead.
type ConversationState string

const (
	StateStart            ConversationState = "START"
	StateLanguageSelect   ConversationState = "LANGUAGE_SELECT"
	StateWarmup           ConversationState = "WARMUP"
	StateCaptureContact   ConversationState = "CAPTURE_CONTACT"
	StateSlotFilling      ConversationState = "SLOT_FILLING"
	StateValueProposition ConversationState = "VALUE_PROPOSITION"
	StateHardGate         ConversationState = "HARD_GATE"
	StateEngagement       ConversationState = "ENGAGEMENT"
	StateHandoff          ConversationState = "HANDOFF"
	StateClosedWon        ConversationState = "CLOSED_WON"
	StateClosedLost       ConversationState = "CLOSED_LOST"
)

// IsTerminal reports whether the state accepts no further automated turns.
func (s ConversationState) IsTerminal() bool {
	return s == StateClosedWon || s == StateClosedLost
}

// Slot keys understood by the extractor and the Brain.
const (
	SlotGoal         = "goal"
	SlotBudgetMin    = "budget_min"
	SlotBudgetMax    = "budget_max"
	SlotPropertyType = "property_type"
	SlotLocation     = "location"
)

// Lead temperature buckets, derived from the lead score.
const (
	TemperatureBurning = "burning"
	TemperatureHot     = "hot"
	TemperatureWarm    = "warm"
	TemperatureCold    = "cold"
)

// FollowupExitStage is the last drip stage; after its message fires the
// drip is disabled for the lead.
const FollowupExitStage = 4

// SlotMap stores extracted structured intent as a JSONB column.
type SlotMap map[string]string

func (m SlotMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *SlotMap) Scan(value interface{}) error {
	if value == nil {
		*m = SlotMap{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("slotmap: unsupported column type %T", value)
	}
	if len(raw) == 0 {
		*m = SlotMap{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Clone returns a shallow copy so callers can stage updates without
// touching the persisted map.
func (m SlotMap) Clone() SlotMap {
	out := make(SlotMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Lead is one customer's conversation context with a tenant, keyed by
// channel identity. The engine never hard-deletes leads.
type Lead struct {
	gorm.Model
	TenantID uint `gorm:"not null;index;uniqueIndex:idx_leads_identity" json:"tenant_id"`

	// Channel identity
	Channel         string `gorm:"not null;uniqueIndex:idx_leads_identity" json:"channel"`
	ChannelIdentity string `gorm:"not null;uniqueIndex:idx_leads_identity" json:"channel_identity"`

	// Contact details
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Language string `gorm:"default:'en'" json:"language"` // en, fa, ar, ru

	// Qualification state
	ConversationState ConversationState `gorm:"not null;default:'START';index" json:"conversation_state"`
	Slots             SlotMap           `gorm:"type:jsonb;default:'{}'" json:"slots"`
	Temperature       string            `gorm:"default:'cold'" json:"temperature"`
	LeadScore         int               `gorm:"default:0" json:"lead_score"`
	PhoneRetries      int               `gorm:"default:0" json:"phone_retries"`

	// Follow-up fields
	FollowupStage     int        `gorm:"default:0" json:"followup_stage"` // 0..4, advances forward only
	NextFollowupAt    *time.Time `gorm:"index" json:"next_followup_at"`
	LastContactedAt   *time.Time `json:"last_contacted_at"`
	LastInboundAt     *time.Time `json:"last_inbound_at"`
	FollowupEnabled   bool       `gorm:"default:true" json:"followup_enabled"`
	GhostReminderSent bool       `gorm:"default:false" json:"ghost_reminder_sent"`

	// Delivery status
	ReplyPending bool   `gorm:"default:false" json:"reply_pending"` // last outbound could not be delivered
	LastError    string `json:"last_error,omitempty"`

	// Relations
	Tenant Tenant `json:"-"`
}

// IdentityKey is the per-lead serialization key shared by the dispatcher
// and the follow-up scheduler.
func (l *Lead) IdentityKey() string {
	return fmt.Sprintf("%d:%s:%s", l.TenantID, l.Channel, l.ChannelIdentity)
}

// PropertySummary is what the external property-matching collaborator
// returns. It is not persisted by the engine.
type PropertySummary struct {
	Title     string `json:"title"`
	Location  string `json:"location"`
	Price     int64  `json:"price"`
	UnitsLeft int    `json:"units_left"`
}

// ValidLanguages are the languages the qualification flow speaks.
var ValidLanguages = []string{"en", "fa", "ar", "ru"}

// IsValidLanguage reports whether code is a supported conversation language.
func IsValidLanguage(code string) bool {
	for _, l := range ValidLanguages {
		if l == code {
			return true
		}
	}
	return false
}

// ErrLeadNotFound distinguishes a missing lead from a storage failure.
var ErrLeadNotFound = errors.New("lead not found")
