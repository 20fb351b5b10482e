package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	videoMarker = "video"

	// minSlugIDLen guards against slugs that merely end in a number, like best-of-2023.
	minSlugIDLen = 15
)

// PostID extracts the account handle and numeric video id from a post link such as
// https://www.tiktok.com/@someone/video/7301234567890123456 or
// https://urlebird.com/video/some-title-7301234567890123456/.
// The account is empty when the link carries no @handle segment.
func PostID(rawURL string) (account, id string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, "@") && len(seg) > 1 && account == "" {
			account = seg[1:]
		}
		if seg != videoMarker || i+1 >= len(segments) {
			continue
		}
		if id = trailingDigits(segments[i+1]); id != "" {
			return account, id, true
		}
	}
	return "", "", false
}

// Canonical returns the canonical TikTok URL of a post link, or the link unchanged
// if no video id can be derived from it. fallbackAccount is used when the link has
// no @handle segment.
func Canonical(rawURL, fallbackAccount string) string {
	account, id, ok := PostID(rawURL)
	if !ok {
		return rawURL
	}
	if account == "" {
		account = fallbackAccount
	}
	if account == "" {
		return rawURL
	}
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", account, id)
}

// trailingDigits returns seg if it is all digits, otherwise the digit run after its
// last '-' when that run is long enough to be a video id.
func trailingDigits(seg string) string {
	if i := strings.LastIndexByte(seg, '-'); i >= 0 {
		seg = seg[i+1:]
		if len(seg) < minSlugIDLen {
			return ""
		}
	}
	if seg == "" {
		return ""
	}
	for _, c := range seg {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return seg
}
