package utils

import (
	"log"
	"strings"
	"unicode"

	"github.com/anoixa/pattern-vault/config"
)

// SanitizeLogMessage 过滤不可打印字符，防止日志注入
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func SanitizeLogUsername(username string) string {
	if len(username) > 50 {
		username = username[:50] + "..."
	}
	return SanitizeLogMessage(username)
}

// LogIfDev 仅在开发环境输出日志
func LogIfDev(v ...interface{}) {
	if config.IsDevelopment() {
		log.Println(v...)
	}
}

// LogIfDevf 仅在开发环境输出格式化日志
func LogIfDevf(format string, v ...interface{}) {
	if config.IsDevelopment() {
		log.Printf(format, v...)
	}
}
