package signer

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

const (
	deeplinkScheme  = "tonsign"
	deeplinkVersion = "v1"

	// DefaultReturnURI brings the user back after signing in the companion app.
	DefaultReturnURI = "tonkeeper://publish"
)

// Deeplink is a request for the Signer companion app.
type Deeplink struct {
	PublicKey string
	Version   string
	Body      []byte
	Return    string
}

// String renders tonsign://v1/?pk=&v=&body=[&return=].
func (d Deeplink) String() string {
	var sb strings.Builder
	sb.WriteString(deeplinkScheme + "://" + deeplinkVersion + "/?pk=")
	sb.WriteString(d.PublicKey)
	sb.WriteString("&v=")
	sb.WriteString(strings.ToLower(d.Version))
	sb.WriteString("&body=")
	sb.WriteString(hex.EncodeToString(d.Body))
	if d.Return != "" {
		sb.WriteString("&return=")
		sb.WriteString(d.Return)
	}
	return sb.String()
}

// BuildDeeplink is a shorthand for Deeplink.String.
func BuildDeeplink(pubKey, version string, body []byte, returnURI string) string {
	return Deeplink{PublicKey: pubKey, Version: version, Body: body, Return: returnURI}.String()
}

// ParseDeeplink parses a tonsign:// link.
func ParseDeeplink(s string) (*Deeplink, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidDeeplink, err)
	}
	if u.Scheme != deeplinkScheme || u.Host != deeplinkVersion {
		return nil, fmt.Errorf("%w: unexpected prefix %s://%s", errInvalidDeeplink, u.Scheme, u.Host)
	}

	q := u.Query()
	body := q.Get("body")
	if len(body)%2 != 0 {
		return nil, fmt.Errorf("%w: odd body length", errInvalidDeeplink)
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: body: %v", errInvalidDeeplink, err)
	}
	return &Deeplink{
		PublicKey: q.Get("pk"),
		Version:   q.Get("v"),
		Body:      raw,
		Return:    q.Get("return"),
	}, nil
}

// ParsePublishLink extracts the hex signature from the return link the
// companion app opens, e.g. tonkeeper://publish?sign=<hex>.
func ParsePublishLink(s string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if u.Host != "publish" && strings.Trim(u.Path, "/") != "publish" {
		return "", fmt.Errorf("%w: not a publish link", ErrInvalidSignature)
	}
	sig := u.Query().Get("sign")
	if err := ValidateSignatureHex(sig); err != nil {
		return "", err
	}
	return sig, nil
}

// ValidateSignatureHex checks that sig is non-empty hex.
func ValidateSignatureHex(sig string) error {
	if sig == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSignature)
	}
	if _, err := hex.DecodeString(sig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
