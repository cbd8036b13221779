// Package fingerprint computes deterministic digests of business content for
// change detection. Two payloads with identical business fields yield identical
// fingerprints regardless of when they were fetched.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// metadataFields are excluded from business fingerprints. They change on every
// fetch without the underlying content changing.
var metadataFields = map[string]bool{
	"fetched_at":          true,
	"created_at":          true,
	"updated_at":          true,
	"run_id":              true,
	"source_run_id":       true,
	"landing_id":          true,
	"api_response_status": true,
	"content_fingerprint": true,
}

// Business returns the hex sha256 of the record's business fields, with
// metadata fields stripped and keys serialized in sorted order.
func Business(record map[string]any) (string, error) {
	business := make(map[string]any, len(record))
	for k, v := range record {
		if metadataFields[k] {
			continue
		}
		business[k] = v
	}
	return canonicalDigest(business)
}

// Response returns the hex sha256 of a whole upstream payload. Used to
// short-circuit re-fetches whose content is byte-for-byte equivalent to the
// previous successful fetch.
func Response(payload map[string]any) (string, error) {
	return canonicalDigest(payload)
}

// Empty reports whether a payload carries no business data: nil, zero keys, or
// only empty collections and blank scalars. An empty payload is recorded in
// the landing log but never fingerprinted as content.
func Empty(payload map[string]any) bool {
	if len(payload) == 0 {
		return true
	}
	for _, v := range payload {
		switch val := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(val) != "" {
				return false
			}
		case []any:
			if len(val) > 0 {
				return false
			}
		case map[string]any:
			if !Empty(val) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// canonicalDigest serializes with sorted keys and hashes. json.Marshal already
// sorts map keys, but nested non-map values (e.g. []any of maps) marshal
// deterministically too, so a single pass suffices.
func canonicalDigest(m map[string]any) (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kj, err := json.Marshal(k)
		if err != nil {
			return "", eris.Wrap(err, "fingerprint: marshal key")
		}
		vj, err := json.Marshal(m[k])
		if err != nil {
			return "", eris.Wrapf(err, "fingerprint: marshal value for %s", k)
		}
		b.Write(kj)
		b.WriteByte(':')
		b.Write(vj)
	}
	b.WriteByte('}')

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}
