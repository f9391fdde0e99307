// Package video builds signed embed URLs for the video CDN. The platform
// never serves video bytes itself; access control happens here by refusing
// to sign URLs for videos the subscription has not unlocked.
package video

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"coachpage_backend/pkg/config"
)

// SignedEmbedURL returns a token-authenticated embed URL that expires. The
// token scheme is the CDN's: sha256(signingKey + videoID + expiresUnix).
func SignedEmbedURL(cfg config.VideoConfig, cdnVideoID string, ttl time.Duration) string {
	expires := time.Now().Add(ttl).Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d", cfg.SigningKey, cdnVideoID, expires)))
	token := hex.EncodeToString(sum[:])

	return fmt.Sprintf("%s/%s/%s?token=%s&expires=%d",
		cfg.EmbedBaseURL, cfg.LibraryID, cdnVideoID, token, expires)
}
