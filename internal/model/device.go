package model

// DeviceClient is an issued API key for a field device or dashboard SDK
// consuming the stream endpoints.
type DeviceClient struct {
	ID       uint64 `gorm:"primaryKey"`
	DeviceID string `gorm:"size:64;not null"`
	APIKey   string `gorm:"size:64;not null"`
	Region   string `gorm:"size:32;default:accra-west"`
	Status   int    `gorm:"default:1"`
}
