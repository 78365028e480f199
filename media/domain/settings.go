package domain

import "context"

// Setting keys used by the picture service.
const (
	SettingStoreInDB         = "Media.Images.StoreInDB"
	SettingDefaultImageName  = "Media.DefaultImageName"
	SettingDefaultAvatarName = "Media.Customer.DefaultAvatarImageName"
	SettingImageQuality      = "Media.ImageQuality"
	SettingMaximumImageSize  = "Media.MaximumImageSize"
	SettingMultipleThumbDirs = "Media.MultipleThumbDirectories"
)

// SettingStore is a typed key/value configuration store. Reads fall back to
// the provided default when a key is missing; Set must invalidate any cached
// value for the key.
type SettingStore interface {
	GetString(ctx context.Context, key, fallback string) string
	GetInt(ctx context.Context, key string, fallback int) int
	GetBool(ctx context.Context, key string, fallback bool) bool
	Set(ctx context.Context, key, value string) error
	ClearCache()
}

// SettingRepository is the persistence surface behind a SettingStore.
type SettingRepository interface {
	GetSetting(ctx context.Context, name string) (string, bool, error)
	SetSetting(ctx context.Context, name, value string) error
}
