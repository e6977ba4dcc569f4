package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

// titlePattern is the upstream embed-title grammar:
// "<:TIER:123456> Card Name *#42*". Any deviation is a decline, not an
// error.
var titlePattern = regexp.MustCompile(`<:(.+?):(\d+)> (.+?) \*#(\d+)\*`)

// ingestTiers are the tiers accepted on this path. URT and EXT parse
// elsewhere but are skipped here; preserved behavior, see the known-gap
// tests.
var ingestTiers = map[models.Tier]bool{
	models.TierCommon:         true,
	models.TierRare:           true,
	models.TierSuperRare:      true,
	models.TierSuperSuperRare: true,
}

// EmbedClaim is the raw upstream material a claim is parsed from: the embed
// title, one field whose name carries the claimer's display name and whose
// value carries the artist, and the embed image URL holding the card id.
type EmbedClaim struct {
	Title      string
	FieldName  string
	FieldValue string
	ImageURL   string
	Timestamp  time.Time
}

// ParseClaim maps the embed text into a structured claim. It is pure: no
// lookups, no side effects. The second return is false when the input does
// not match the grammar or the tier is outside the accepted set. UserID and
// ServerID are left for the caller to resolve.
func ParseClaim(in EmbedClaim) (models.Claim, bool) {
	match := titlePattern.FindStringSubmatch(in.Title)
	if match == nil {
		return models.Claim{}, false
	}

	tier := models.Tier(match[1])
	if !ingestTiers[tier] {
		return models.Claim{}, false
	}

	nameParts := strings.Fields(in.FieldName)
	if len(nameParts) < 3 {
		return models.Claim{}, false
	}
	valueParts := strings.Fields(in.FieldValue)
	if len(valueParts) < 4 {
		return models.Claim{}, false
	}

	urlParts := strings.Split(in.ImageURL, "/")
	if len(urlParts) < 5 {
		return models.Claim{}, false
	}

	print, err := strconv.Atoi(match[4])
	if err != nil || print <= 0 {
		return models.Claim{}, false
	}

	return models.Claim{
		ClaimedID: match[2],
		CardName:  match[3],
		CardID:    urlParts[4],
		Owner:     nameParts[2],
		Artist:    valueParts[3],
		Print:     print,
		Tier:      tier,
		Timestamp: in.Timestamp,
	}, true
}
