package transport

import "github.com/fastygo/schoolerp/domain"

type CreateSettingsRequest struct {
	Data    domain.Document `json:"data"`
	Entries []EntryRequest  `json:"entries,omitempty"`
}

type UpdateSettingsRequest struct {
	Data            domain.Document `json:"data"`
	ExpectedVersion *int            `json:"expectedVersion,omitempty"`
}

type EntryRequest struct {
	Name    string          `json:"name"`
	Enabled *bool           `json:"enabled,omitempty"`
	Data    domain.Document `json:"data,omitempty"`
}

type BulkEntriesRequest struct {
	Entries []EntryRequest `json:"entries"`
}

type EntryPatchRequest struct {
	Enabled *bool           `json:"enabled,omitempty"`
	Data    domain.Document `json:"data,omitempty"`
}

type OTPSendRequest struct {
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
}

type OTPVerifyRequest struct {
	Code string `json:"code"`
}

type MaskRequest struct {
	Record map[string]interface{} `json:"record"`
}

type CryptoRequest struct {
	Value string `json:"value"`
}

// PageMeta accompanies paged audit responses.
type PageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}
