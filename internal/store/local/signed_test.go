package local

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecrate/filecrate/internal/errs"
)

func TestPublicURL(t *testing.T) {
	withBase := newDriver(t, func(cfg *Config) { cfg.PublicBaseURL = "https://cdn.example.com" })
	rec := saveFile(t, withBase, "pub.txt", "x", "")
	assert.Equal(t, "https://cdn.example.com/"+rec.ID, withBase.PublicURL(context.Background(), rec.ID))

	noBase := newDriver(t, nil)
	rec2 := saveFile(t, noBase, "priv.txt", "x", "")
	assert.Empty(t, noBase.PublicURL(context.Background(), rec2.ID))
}

func TestSignedURLRoundTrip(t *testing.T) {
	d := newDriver(t, func(cfg *Config) {
		cfg.SignedURLKey = []byte("test-signing-key")
		cfg.SignedURLBase = "http://localhost:8080"
	})
	rec := saveFile(t, d, "secret.txt", "x", "")

	signed, err := d.SignedURL(context.Background(), rec.ID, 10*time.Minute)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(signed, "http://localhost:8080/files/"+rec.ID+"?"))

	u, err := url.Parse(signed)
	require.NoError(t, err)
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	require.NoError(t, err)
	signature := u.Query().Get("signature")
	require.NotEmpty(t, signature)

	assert.True(t, d.VerifySignedURL(rec.ID, expires, signature))

	// Tampering with the id or the expiry invalidates the signature.
	assert.False(t, d.VerifySignedURL("other-id", expires, signature))
	assert.False(t, d.VerifySignedURL(rec.ID, expires+1, signature))
	assert.False(t, d.VerifySignedURL(rec.ID, expires, "deadbeef"))
}

func TestSignedURLExpiry(t *testing.T) {
	d := newDriver(t, func(cfg *Config) { cfg.SignedURLKey = []byte("k") })
	rec := saveFile(t, d, "brief.txt", "x", "")

	// A signature whose expiry already passed fails even though the HMAC is
	// valid.
	expires := time.Now().Add(-time.Minute).Unix()
	sig := d.sign(rec.ID, expires)
	assert.False(t, d.VerifySignedURL(rec.ID, expires, sig))
}

func TestSignedURLRequiresKey(t *testing.T) {
	d := newDriver(t, nil)
	rec := saveFile(t, d, "nokey.txt", "x", "")

	_, err := d.SignedURL(context.Background(), rec.ID, time.Minute)
	require.Error(t, err)
	assert.True(t, errs.IsSignedURLUnsupported(err))

	assert.False(t, d.VerifySignedURL(rec.ID, time.Now().Add(time.Hour).Unix(), "sig"))
}

func TestSignedURLUnknownID(t *testing.T) {
	d := newDriver(t, func(cfg *Config) { cfg.SignedURLKey = []byte("k") })

	_, err := d.SignedURL(context.Background(), "no-such-id", time.Minute)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}
