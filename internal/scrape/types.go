package scrape

import (
	"encoding/json"
	"strings"
	"time"
)

// Actor identifiers for the supported scrape job types.
const (
	ActorFacebookComments = "apify~facebook-comments-scraper"
	ActorTikTok           = "clockworks~tiktok-scraper"
)

// RawRecord is one unit of content from a finished scrape run,
// normalized from the provider's loosely-typed item shape. Immutable
// once fetched.
type RawRecord struct {
	Text     string    `json:"text"`
	Likes    int64     `json:"likes"`
	Views    int64     `json:"views"`
	Comments int64     `json:"comments"`
	Shares   int64     `json:"shares"`
	Saves    int64     `json:"saves"`
	PostedAt time.Time `json:"posted_at,omitzero"`
	URL      string    `json:"url"`
}

// ActorForURL picks the scrape actor for a content URL.
func ActorForURL(url string) string {
	if strings.Contains(url, "tiktok.com") {
		return ActorTikTok
	}
	return ActorFacebookComments
}

// BuildInput builds the actor input document for a content URL.
// maxItems caps the number of records the actor collects.
func BuildInput(actor, url string, maxItems int) map[string]any {
	switch actor {
	case ActorTikTok:
		return map[string]any{
			"profiles":              []string{url},
			"resultsPerPage":        maxItems,
			"shouldDownloadVideos":  false,
			"shouldDownloadCovers":  false,
			"profileScrapeSections": []string{"videos"},
		}
	default:
		return map[string]any{
			"startUrls":   []map[string]string{{"url": url}},
			"maxComments": maxItems,
		}
	}
}

// BuildMonitorInput builds the TikTok actor input for competitor
// monitoring of a profile. oldest bounds how far back the actor
// collects; callers still filter the returned window locally.
func BuildMonitorInput(profileURL string, resultsPerPage int, oldest time.Time) map[string]any {
	if resultsPerPage <= 0 {
		resultsPerPage = 35
	}
	input := map[string]any{
		"profiles":              []string{profileURL},
		"resultsPerPage":        resultsPerPage,
		"shouldDownloadVideos":  false,
		"shouldDownloadCovers":  false,
		"profileScrapeSections": []string{"videos"},
	}
	if !oldest.IsZero() {
		input["oldestPostDateUnified"] = oldest.Format("2006-01-02")
	}
	return input
}

// FilterWindow keeps records whose timestamp falls inside [start, end].
// Records without a timestamp are kept when the window is open-ended.
func FilterWindow(records []RawRecord, start, end time.Time) []RawRecord {
	var out []RawRecord
	for _, r := range records {
		if r.PostedAt.IsZero() {
			if start.IsZero() && end.IsZero() {
				out = append(out, r)
			}
			continue
		}
		if !start.IsZero() && r.PostedAt.Before(start) {
			continue
		}
		if !end.IsZero() && r.PostedAt.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Alias keys seen across the supported actors for each normalized field.
var (
	textKeys     = []string{"text", "title", "message", "desc"}
	likeKeys     = []string{"likesCount", "diggCount", "likes"}
	viewKeys     = []string{"playCount", "viewsCount", "views"}
	commentKeys  = []string{"commentsCount", "commentCount", "comments"}
	shareKeys    = []string{"sharesCount", "shareCount", "shares"}
	saveKeys     = []string{"collectCount", "savesCount"}
	urlKeys      = []string{"url", "webVideoUrl", "commentUrl", "postUrl", "facebookUrl"}
	postedAtKeys = []string{"createTimeISO", "date", "createdAt", "time"}
)

// NormalizeRecord converts one provider item into a RawRecord, applying
// zero-value defaults for anything missing. Downstream stages never see
// provider-specific shapes.
func NormalizeRecord(raw json.RawMessage) RawRecord {
	var item map[string]any
	if err := json.Unmarshal(raw, &item); err != nil {
		return RawRecord{}
	}
	rec := RawRecord{
		Text:     firstString(item, textKeys),
		Likes:    firstInt(item, likeKeys),
		Views:    firstInt(item, viewKeys),
		Comments: firstInt(item, commentKeys),
		Shares:   firstInt(item, shareKeys),
		Saves:    firstInt(item, saveKeys),
		URL:      firstString(item, urlKeys),
	}
	if ts := firstString(item, postedAtKeys); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.PostedAt = t
		}
	}
	return rec
}

func firstString(item map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := item[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstInt(item map[string]any, keys []string) int64 {
	for _, k := range keys {
		switch v := item[k].(type) {
		case float64:
			return int64(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n
			}
		}
	}
	return 0
}
