package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/filecrate/filecrate/internal/errs"
)

// PublicURL returns a direct URL when a public base is configured, else "".
// It never fails.
func (d *Driver) PublicURL(ctx context.Context, id string) string {
	if d.cfg.PublicBaseURL == "" {
		return ""
	}
	return d.cfg.PublicBaseURL + "/" + id
}

// SignedURL issues a time-limited URL for id: an HMAC-SHA256 signature over
// "id:expiryEpochSeconds" under the configured signing key. Requires
// SignedURLKey; without it the driver cannot sign.
func (d *Driver) SignedURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	if len(d.cfg.SignedURLKey) == 0 {
		return "", errs.New(errs.ErrKindSignedURLUnsupported, "local storage has no signing key configured")
	}
	if _, err := d.GetMetadata(ctx, id); err != nil {
		return "", err
	}

	expires := time.Now().Add(expiry).Unix()
	sig := d.sign(id, expires)
	return fmt.Sprintf("%s/files/%s?expires=%d&signature=%s", d.cfg.SignedURLBase, id, expires, sig), nil
}

// VerifySignedURL validates a signature produced by SignedURL: the expiry
// must not have elapsed and the recomputed HMAC must match. The comparison
// is constant-time.
func (d *Driver) VerifySignedURL(id string, expires int64, signature string) bool {
	if len(d.cfg.SignedURLKey) == 0 {
		return false
	}
	if time.Now().Unix() > expires {
		return false
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(d.sign(id, expires))
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

func (d *Driver) sign(id string, expires int64) string {
	mac := hmac.New(sha256.New, d.cfg.SignedURLKey)
	mac.Write([]byte(id + ":" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
