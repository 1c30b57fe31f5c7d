package domain

// Typed views of the module documents. Validation tags are evaluated by internal/validation.

// Encryption standards accepted by the security framework.
const (
	EncryptionAES128  = "AES-128"
	EncryptionAES256  = "AES-256"
	EncryptionRSA2048 = "RSA-2048"
	EncryptionRSA4096 = "RSA-4096"
)

// Masking policies.
const (
	MaskingFull    = "Full"
	MaskingPartial = "Partial"
)

// FlagMultiFactorAuth gates OTP operations.
const FlagMultiFactorAuth = "multi_factor_auth"

type SecurityFrameworkConfig struct {
	Encryption            EncryptionPolicy `json:"encryption"`
	DataMasking           MaskingPolicy    `json:"dataMasking"`
	MFA                   MFAPolicy        `json:"mfa"`
	PasswordPolicy        PasswordPolicy   `json:"passwordPolicy"`
	Geofencing            GeofencePolicy   `json:"geofencing"`
	SessionTimeoutMinutes int              `json:"sessionTimeoutMinutes,omitempty" validate:"omitempty,min=5,max=1440"`
}

type EncryptionPolicy struct {
	Standard        string `json:"standard" validate:"required,oneof=AES-128 AES-256 RSA-2048 RSA-4096"`
	KeyRotationDays int    `json:"keyRotationDays,omitempty" validate:"omitempty,min=1,max=365"`
}

type MaskingPolicy struct {
	Enabled bool     `json:"enabled"`
	Policy  string   `json:"policy,omitempty" validate:"omitempty,oneof=Full Partial"`
	Fields  []string `json:"fields,omitempty" validate:"omitempty,dive,required,max=64"`
}

type MFAPolicy struct {
	Methods   []string `json:"methods,omitempty" validate:"omitempty,dive,oneof=sms email totp"`
	OTPLength int      `json:"otpLength,omitempty" validate:"omitempty,min=4,max=10"`
}

type PasswordPolicy struct {
	MinLength      int  `json:"minLength,omitempty" validate:"omitempty,min=6,max=128"`
	RequireSymbols bool `json:"requireSymbols,omitempty"`
	RequireDigits  bool `json:"requireDigits,omitempty"`
	ExpiryDays     int  `json:"expiryDays,omitempty" validate:"omitempty,min=1,max=730"`
}

type GeofencePolicy struct {
	Enabled          bool     `json:"enabled"`
	AllowedCountries []string `json:"allowedCountries,omitempty" validate:"omitempty,dive,iso3166_1_alpha2"`
	AllowedIPRanges  []string `json:"allowedIpRanges,omitempty" validate:"omitempty,dive,cidr"`
}

type CoreSystemConfig struct {
	SchoolName             string            `json:"schoolName,omitempty" validate:"omitempty,max=200"`
	Language               string            `json:"language,omitempty" validate:"omitempty,min=2,max=10"`
	Timezone               string            `json:"timezone,omitempty" validate:"omitempty,timezone"`
	DateFormat             string            `json:"dateFormat,omitempty" validate:"omitempty,oneof=DD/MM/YYYY MM/DD/YYYY YYYY-MM-DD"`
	Currency               string            `json:"currency,omitempty" validate:"omitempty,iso4217"`
	AcademicYearStartMonth int               `json:"academicYearStartMonth,omitempty" validate:"omitempty,min=1,max=12"`
	TimeSync               TimeSyncConfig    `json:"timeSync"`
	Maintenance            MaintenanceWindow `json:"maintenance"`
}

type TimeSyncConfig struct {
	Enabled         bool     `json:"enabled"`
	PrimaryServer   string   `json:"primaryServer,omitempty" validate:"omitempty,hostname_rfc1123|ip"`
	FallbackServers []string `json:"fallbackServers,omitempty" validate:"omitempty,dive,hostname_rfc1123|ip"`
	IntervalMinutes int      `json:"intervalMinutes,omitempty" validate:"omitempty,min=1,max=1440"`
}

// Servers lists the primary server followed by the fallbacks.
func (t TimeSyncConfig) Servers() []string {
	var out []string
	if t.PrimaryServer != "" {
		out = append(out, t.PrimaryServer)
	}
	return append(out, t.FallbackServers...)
}

type MaintenanceWindow struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message,omitempty" validate:"omitempty,max=500"`
}

type EnterpriseInfraConfig struct {
	Storage            StorageConfig `json:"storage"`
	Backup             BackupConfig  `json:"backup"`
	AuditRetentionDays int           `json:"auditRetentionDays,omitempty" validate:"omitempty,min=1,max=3650"`
	CDN                CDNConfig     `json:"cdn"`
	Email              ChannelConfig `json:"email"`
	SMS                ChannelConfig `json:"sms"`
}

type StorageConfig struct {
	Provider    string `json:"provider,omitempty" validate:"omitempty,oneof=local s3 gcs azure"`
	Bucket      string `json:"bucket,omitempty" validate:"omitempty,max=255"`
	Region      string `json:"region,omitempty" validate:"omitempty,max=64"`
	MaxUploadMB int    `json:"maxUploadMb,omitempty" validate:"omitempty,min=1,max=1024"`
}

type BackupConfig struct {
	Enabled       bool   `json:"enabled"`
	Frequency     string `json:"frequency,omitempty" validate:"omitempty,oneof=hourly daily weekly monthly"`
	RetentionDays int    `json:"retentionDays,omitempty" validate:"omitempty,min=1,max=3650"`
}

type CDNConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"baseUrl,omitempty" validate:"omitempty,url"`
}

type ChannelConfig struct {
	Provider    string `json:"provider,omitempty" validate:"omitempty,oneof=smtp sendgrid ses twilio msg91 sns"`
	FromAddress string `json:"fromAddress,omitempty" validate:"omitempty,max=255"`
}

// FeatureFlagsConfig is the aggregate-level document of the featureFlags module.
type FeatureFlagsConfig struct {
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// FeatureFlagAttributes is the data document of a feature flag entry.
type FeatureFlagAttributes struct {
	Description       string   `json:"description,omitempty" validate:"omitempty,max=500"`
	RolloutPercentage *int     `json:"rolloutPercentage,omitempty" validate:"omitempty,min=0,max=100"`
	Environments      []string `json:"environments,omitempty" validate:"omitempty,dive,oneof=development staging production"`
}

// RolesConfig is the aggregate-level document of the role module.
type RolesConfig struct {
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// RoleAttributes is the data document of a role entry.
type RoleAttributes struct {
	Description string   `json:"description,omitempty" validate:"omitempty,max=500"`
	Permissions []string `json:"permissions,omitempty" validate:"omitempty,dive,permission"`
	IsSystem    bool     `json:"isSystem,omitempty"`
}
