package assets

import (
	"crypto/md5" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

const fallbackExtension = ".jpg"

// Hash returns the hex MD5 digest of rawURL.
func Hash(rawURL string) string {
	sum := md5.Sum([]byte(rawURL)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// SourceExtension returns the lowercased extension of the URL path, or .jpg
// when the path has none or the URL does not parse.
func SourceExtension(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fallbackExtension
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	if ext == "" || ext == "." {
		return fallbackExtension
	}
	return ext
}

// FileName returns the local asset name for rawURL. targetExt is used when
// transcoding; pass "" to keep the source extension.
func FileName(rawURL, targetExt string) string {
	ext := targetExt
	if ext == "" {
		ext = SourceExtension(rawURL)
	}
	return Hash(rawURL) + ext
}
