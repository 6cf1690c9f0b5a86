package models

import "time"

// InviteCodeLength 邀请码长度
const InviteCodeLength = 6

// Group 群组，成员关系只保存在 GroupMembership 中
type Group struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"type:varchar(100);not null" json:"name"`
	InviteCode string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"invite_code"`
	AdminID    uint      `gorm:"not null;index" json:"admin_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GroupMembership 用户与群组的唯一关联
// User.groups 与 Group.members 都是这张表的投影
type GroupMembership struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_user_group,priority:1" json:"user_id"`
	GroupID  uint      `gorm:"not null;uniqueIndex:idx_user_group,priority:2;index" json:"group_id"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

// TableName groups 在部分数据库中是关键字
func (Group) TableName() string {
	return "vault_groups"
}
