package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Resolver computes public URLs for migrated assets.
type Resolver interface {
	AssetURL(ctx context.Context, id int64) (string, error)
	SizedAssetURL(ctx context.Context, id int64, width, height int) (string, error)
	AttachmentURL(id int64) string
}

// Map holds the original-id to migrated-id associations for one batch. Only
// completed migrations belong here.
type Map map[int64]int64

// Rule is one structural pattern with a pure body transform. Transforms
// that cannot parse a match leave that match untouched.
type Rule struct {
	Name  string
	Apply func(ctx context.Context, body string, m Map, r Resolver) (string, error)
}

// Rules returns the rewrite rules in their fixed application order.
func Rules() []Rule {
	return []Rule{
		{Name: "block-image", Apply: applyBlockImage},
		{Name: "inline-tag", Apply: applyInlineTag},
		{Name: "media-text", Apply: applyMediaText},
		{Name: "cover", Apply: applyCover},
	}
}

var (
	// scanPattern collects every asset id referenced either as a
	// class-style marker or a JSON-style key.
	scanPattern = regexp.MustCompile(`wp-image-(\d+)|"id":(\d+)`)

	blockImagePattern = regexp.MustCompile(`(?s)<!--\s*wp:image\s*(\{.*?\})\s*-->`)
	mediaTextPattern  = regexp.MustCompile(`(?s)<!--\s*wp:media-text\s*(\{.*?\})\s*-->`)
	coverPattern      = regexp.MustCompile(`(?s)<!--\s*wp:cover\s*(\{.*?\})\s*-->`)

	imgTagPattern   = regexp.MustCompile(`(?s)<img\b[^>]*>`)
	imgClassPattern = regexp.MustCompile(`wp-image-(\d+)`)
	srcAttrPattern  = regexp.MustCompile(`src=("[^"]*"|'[^']*')`)
	srcsetPattern   = regexp.MustCompile(`\s*srcset=("[^"]*"|'[^']*')`)
	widthPattern    = regexp.MustCompile(`width="(\d+)"`)
	heightPattern   = regexp.MustCompile(`height="(\d+)"`)
)

// ScanIDs returns the deduplicated asset ids referenced by the given bodies.
func ScanIDs(bodies []string) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, body := range bodies {
		for _, match := range scanPattern.FindAllStringSubmatch(body, -1) {
			raw := match[1]
			if raw == "" {
				raw = match[2]
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// applyBlockImage swaps the id inside image-block JSON payloads. Payloads
// that fail to parse pass through untouched.
func applyBlockImage(_ context.Context, body string, m Map, _ Resolver) (string, error) {
	return replaceBlockJSON(body, blockImagePattern, "wp:image", func(payload map[string]any) bool {
		newID, ok := mappedID(payload, "id", m)
		if !ok {
			return false
		}
		payload["id"] = newID
		return true
	}), nil
}

// applyInlineTag rewrites img tags carrying a wp-image class: the class
// token and src move to the migrated asset, and stale srcset hints are
// dropped.
func applyInlineTag(ctx context.Context, body string, m Map, r Resolver) (string, error) {
	var resolveErr error
	result := imgTagPattern.ReplaceAllStringFunc(body, func(tag string) string {
		if resolveErr != nil {
			return tag
		}
		classMatch := imgClassPattern.FindStringSubmatch(tag)
		if classMatch == nil {
			return tag
		}
		oldID, err := strconv.ParseInt(classMatch[1], 10, 64)
		if err != nil {
			return tag
		}
		newID, ok := m[oldID]
		if !ok {
			return tag
		}

		url, err := resolveTagURL(ctx, r, newID, tag)
		if err != nil {
			resolveErr = err
			return tag
		}

		updated := strings.Replace(tag, classMatch[0], "wp-image-"+strconv.FormatInt(newID, 10), 1)
		updated = srcAttrPattern.ReplaceAllString(updated, `src="`+url+`"`)
		updated = srcsetPattern.ReplaceAllString(updated, "")
		return updated
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return result, nil
}

// resolveTagURL prefers a size-matched URL when the tag carries positive
// width and height attributes.
func resolveTagURL(ctx context.Context, r Resolver, id int64, tag string) (string, error) {
	width := attrInt(widthPattern, tag)
	height := attrInt(heightPattern, tag)
	if width > 0 && height > 0 {
		return r.SizedAssetURL(ctx, id, width, height)
	}
	return r.AssetURL(ctx, id)
}

func attrInt(pattern *regexp.Regexp, tag string) int {
	match := pattern.FindStringSubmatch(tag)
	if match == nil {
		return 0
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return value
}

// applyMediaText swaps the mediaId inside media-text JSON payloads and
// regenerates the attachment permalink when one is present.
func applyMediaText(_ context.Context, body string, m Map, r Resolver) (string, error) {
	return replaceBlockJSON(body, mediaTextPattern, "wp:media-text", func(payload map[string]any) bool {
		newID, ok := mappedID(payload, "mediaId", m)
		if !ok {
			return false
		}
		payload["mediaId"] = newID
		if _, hasLink := payload["mediaLink"]; hasLink {
			payload["mediaLink"] = r.AttachmentURL(newID)
		}
		return true
	}), nil
}

// applyCover swaps the id inside cover-block JSON payloads and sets the
// background url to the migrated asset's, adding the key when absent.
func applyCover(ctx context.Context, body string, m Map, r Resolver) (string, error) {
	var resolveErr error
	result := replaceBlockJSON(body, coverPattern, "wp:cover", func(payload map[string]any) bool {
		if resolveErr != nil {
			return false
		}
		newID, ok := mappedID(payload, "id", m)
		if !ok {
			return false
		}
		url, err := r.AssetURL(ctx, newID)
		if err != nil {
			resolveErr = err
			return false
		}
		payload["id"] = newID
		payload["url"] = url
		return true
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return result, nil
}

// replaceBlockJSON parses each matched block payload, lets mutate adjust
// it, and re-serializes only when something changed. Malformed payloads
// pass through unchanged.
func replaceBlockJSON(body string, pattern *regexp.Regexp, blockName string, mutate func(map[string]any) bool) string {
	return pattern.ReplaceAllStringFunc(body, func(block string) string {
		submatch := pattern.FindStringSubmatch(block)
		if submatch == nil {
			return block
		}
		raw := submatch[1]

		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return block
		}
		if !mutate(payload) {
			return block
		}
		encoded, err := marshalPayload(payload)
		if err != nil {
			return block
		}
		return fmt.Sprintf("<!-- %s %s -->", blockName, encoded)
	})
}

// mappedID reads a positive integer id from the payload and looks it up in
// the map. JSON numbers arrive as float64.
func mappedID(payload map[string]any, key string, m Map) (int64, bool) {
	value, ok := payload[key]
	if !ok {
		return 0, false
	}
	number, ok := value.(float64)
	if !ok {
		return 0, false
	}
	oldID := int64(number)
	if oldID <= 0 {
		return 0, false
	}
	newID, mapped := m[oldID]
	return newID, mapped
}

func marshalPayload(payload map[string]any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
