package models

import "gorm.io/gorm"

// Supported chat channels. Channel transport adapters live outside the
// engine; the engine only needs a stable name per channel.
const (
	ChannelTelegram  = "telegram"
	ChannelWhatsApp  = "whatsapp"
	ChannelInstagram = "instagram"
)

// Tenant represents one real-estate agency using the platform.
// Provisioning is owned externally; the engine reads tenants and updates
// only the admin notification address through the admin API.
type Tenant struct {
	gorm.Model
	Name string `gorm:"not null" json:"name"`

	// AdminEmail receives new-lead alerts. Nullable: when unset, alerts
	// are suppressed with a warning, never an error.
	AdminEmail      *string `json:"admin_email,omitempty"`
	DefaultLanguage string  `gorm:"default:'en'" json:"default_language"`
	IsActive        bool    `gorm:"default:true" json:"is_active"`

	// Relations
	BotCredentials []BotCredential `gorm:"foreignKey:TenantID" json:"bot_credentials,omitempty"`
	Leads          []Lead          `gorm:"foreignKey:TenantID" json:"-"`
}

// BotCredential holds one tenant's bot token for one channel. Tokens are
// encrypted at rest with the process encryption key.
type BotCredential struct {
	gorm.Model
	TenantID uint   `gorm:"not null;index;uniqueIndex:idx_bot_credentials_channel" json:"tenant_id"`
	Channel  string `gorm:"not null;uniqueIndex:idx_bot_credentials_channel" json:"channel"`

	TokenEncrypted string `gorm:"not null" json:"-"`
	IsActive       bool   `gorm:"default:true" json:"is_active"`
	LastError      string `json:"last_error,omitempty"`

	// Relations
	Tenant Tenant `json:"-"`
}
