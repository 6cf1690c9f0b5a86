package groups

import (
	"context"
	"fmt"
)

// Violation 一致性检查发现的问题
type Violation struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return v.Rule + ": " + v.Detail
}

type invariantQuery struct {
	rule   string
	format string
	sql    string
}

var invariantQueries = []invariantQuery{
	{
		rule:   "admin_is_member",
		format: "group %d admin has no membership",
		sql: `SELECT g.id FROM vault_groups g
			WHERE NOT EXISTS (SELECT 1 FROM group_memberships m WHERE m.group_id = g.id AND m.user_id = g.admin_id)`,
	},
	{
		rule:   "membership_user_exists",
		format: "membership %d references a missing user",
		sql: `SELECT m.id FROM group_memberships m
			LEFT JOIN users u ON u.id = m.user_id WHERE u.id IS NULL`,
	},
	{
		rule:   "membership_group_exists",
		format: "membership %d references a missing group",
		sql: `SELECT m.id FROM group_memberships m
			LEFT JOIN vault_groups g ON g.id = m.group_id WHERE g.id IS NULL`,
	},
	{
		rule:   "page_scope_valid",
		format: "page %d is scoped to a missing group",
		sql: `SELECT p.id FROM pages p
			LEFT JOIN vault_groups g ON g.id = p.group_id
			WHERE p.group_id IS NOT NULL AND g.id IS NULL`,
	},
	{
		rule:   "album_scope_valid",
		format: "album %d is scoped to a missing group",
		sql: `SELECT a.id FROM albums a
			LEFT JOIN vault_groups g ON g.id = a.group_id
			WHERE a.group_id IS NOT NULL AND g.id IS NULL`,
	},
	{
		rule:   "photo_album_exists",
		format: "photo %d references a missing album",
		sql: `SELECT p.id FROM album_photos p
			LEFT JOIN albums a ON a.id = p.album_id WHERE a.id IS NULL`,
	},
}

// CheckInvariants 检查成员关系和资源归属的一致性，返回空切片表示一致
func (r *Repository) CheckInvariants(ctx context.Context) ([]Violation, error) {
	violations := make([]Violation, 0)
	db := r.db.WithContext(ctx)

	for _, q := range invariantQueries {
		var ids []uint
		if err := db.Raw(q.sql).Scan(&ids).Error; err != nil {
			return nil, fmt.Errorf("invariant %s: %w", q.rule, err)
		}
		for _, id := range ids {
			violations = append(violations, Violation{Rule: q.rule, Detail: fmt.Sprintf(q.format, id)})
		}
	}

	var dupCodes []string
	err := db.Raw(`SELECT invite_code FROM vault_groups GROUP BY invite_code HAVING COUNT(*) > 1`).Scan(&dupCodes).Error
	if err != nil {
		return nil, fmt.Errorf("invariant invite_code_unique: %w", err)
	}
	for _, code := range dupCodes {
		violations = append(violations, Violation{Rule: "invite_code_unique", Detail: fmt.Sprintf("invite code %s is shared", code)})
	}

	return violations, nil
}
