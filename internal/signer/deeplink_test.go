package signer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeeplinkRoundTrip(t *testing.T) {
	pk := strings.Repeat("ab", 32)
	body := bytes.Repeat([]byte{0xb5, 0xee, 0x9c, 0x72, 0x01}, 20)

	link := BuildDeeplink(pk, "v4R2", body, "")
	assert.True(t, strings.HasPrefix(link, "tonsign://v1/?pk="+pk+"&v=v4r2&body="))
	assert.NotContains(t, link, "return")

	parsed, err := ParseDeeplink(link)
	require.NoError(t, err)
	assert.Equal(t, pk, parsed.PublicKey)
	assert.Equal(t, "v4r2", parsed.Version)
	assert.Equal(t, body, parsed.Body)

	u := strings.SplitN(link, "body=", 2)[1]
	assert.Zero(t, len(u)%2)

	withReturn := BuildDeeplink(pk, "V3R2", body, DefaultReturnURI)
	assert.True(t, strings.HasSuffix(withReturn, "&return=tonkeeper://publish"))
	parsed, err = ParseDeeplink(withReturn)
	require.NoError(t, err)
	assert.Equal(t, DefaultReturnURI, parsed.Return)
	assert.Equal(t, "v3r2", parsed.Version)
}

func TestParseDeeplink_Invalid(t *testing.T) {
	for _, s := range []string{
		"https://v1/?pk=aa&v=v4r2&body=00",
		"tonsign://v2/?pk=aa&v=v4r2&body=00",
		"tonsign://v1/?pk=aa&v=v4r2&body=abc",
		"tonsign://v1/?pk=aa&v=v4r2&body=zz",
	} {
		_, err := ParseDeeplink(s)
		assert.ErrorIs(t, err, errInvalidDeeplink, s)
	}
}

func TestParsePublishLink(t *testing.T) {
	sig, err := ParsePublishLink("tonkeeper://publish?sign=deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", sig)

	_, err = ParsePublishLink("tonkeeper://publish?sign=xyz")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParsePublishLink("tonkeeper://transfer?sign=00")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPresentationRequest_SingleResolution(t *testing.T) {
	req := NewPresentationRequest(RouteSignerConfirm, "w")
	_, ok := req.Outcome()
	assert.False(t, ok)

	assert.True(t, req.Resolve("00"))
	assert.False(t, req.Close())
	assert.False(t, req.Resolve("11"))
	<-req.Done()
	outcome, ok := req.Outcome()
	require.True(t, ok)
	assert.Equal(t, PresentationResult{Signature: "00"}, outcome)
}
