package models

import "time"

// Page 文本页面，GroupID 为空时属于个人
type Page struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID    uint      `gorm:"not null;index" json:"owner_id"`
	GroupID    *uint     `gorm:"index" json:"group_id,omitempty"`
	Title      string    `gorm:"type:varchar(200);not null" json:"title"`
	Content    string    `gorm:"type:text" json:"content"`
	LastEdited time.Time `gorm:"not null;index" json:"last_edited"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsPersonal 是否个人页面
func (p *Page) IsPersonal() bool {
	return p.GroupID == nil
}
