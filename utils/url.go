package utils

import (
	"fmt"
	"strings"
)

// BuildPhotoURL 相册照片访问地址
func BuildPhotoURL(baseURL string, albumID uint, filename string) string {
	return fmt.Sprintf("%s/api/albums/%d/photos/%s", strings.TrimRight(baseURL, "/"), albumID, filename)
}
