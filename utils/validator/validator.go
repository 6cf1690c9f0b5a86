package validator

import (
	"io"
	"net/http"
	"net/mail"
	"strings"
)

// allowedImageMimeTypes Allowed image types
var allowedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// DetectImage 读取文件头判断类型，读取后恢复到文件开头
func DetectImage(file io.ReadSeeker) (string, bool, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", false, err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}

	mimeType := http.DetectContentType(buffer[:n])
	return mimeType, allowedImageMimeTypes[mimeType], nil
}

// IsEmail 简单校验邮箱格式，不接受显示名
func IsEmail(email string) bool {
	if len(email) > 254 || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1
}
