package groups

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/anoixa/pattern-vault/database/models"
)

const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MaxInviteCodeAttempts 生成邀请码的最大重试次数
const MaxInviteCodeAttempts = 10

// CodeGenerator 邀请码生成器
type CodeGenerator func() (string, error)

// GenerateInviteCode 6 位大写字母数字
func GenerateInviteCode() (string, error) {
	var sb strings.Builder
	sb.Grow(models.InviteCodeLength)
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := 0; i < models.InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		sb.WriteByte(inviteAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeInviteCode 去除空白并转为大写
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
