package models

// All 需要迁移的模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Group{},
		&GroupMembership{},
		&Page{},
		&Album{},
		&AlbumPhoto{},
	}
}
