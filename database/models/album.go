package models

import "time"

// Album 相册，GroupID 为空时属于个人
type Album struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	GroupID   *uint     `gorm:"index" json:"group_id,omitempty"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`

	Photos []AlbumPhoto `gorm:"foreignKey:AlbumID" json:"photos,omitempty"`
}

// IsPersonal 是否个人相册
func (a *Album) IsPersonal() bool {
	return a.GroupID == nil
}

// AlbumPhoto 相册中的照片，按 ID 顺序排列
type AlbumPhoto struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AlbumID      uint      `gorm:"not null;index" json:"album_id"`
	Filename     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"filename"`
	StorageKey   string    `gorm:"type:varchar(512);not null" json:"-"`
	OriginalName string    `gorm:"type:varchar(255)" json:"original_name"`
	MimeType     string    `gorm:"type:varchar(100)" json:"mime_type"`
	Size         int64     `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	UploadedAt   time.Time `gorm:"not null" json:"uploaded_at"`
}

// AlbumSummary 相册列表项
type AlbumSummary struct {
	Album
	PhotoCount int64 `json:"photo_count"`
}
