package cardcrypto

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// CardJSON builds {"fpan":"…","exp":"…","cvv":"…"} in a fresh buffer without
// intermediate strings, so the result can be wiped after use. Inputs must be
// digits only.
func CardJSON(pan, expiry, cvv []byte) ([]byte, error) {
	for name, field := range map[string][]byte{"pan": pan, "expiry": expiry, "cvv": cvv} {
		if len(field) == 0 {
			return nil, fmt.Errorf("%s is required", name)
		}
		for _, c := range field {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("%s must contain digits only", name)
			}
		}
	}

	buf := make([]byte, 0, len(pan)+len(expiry)+len(cvv)+32)
	buf = append(buf, `{"fpan":"`...)
	buf = append(buf, pan...)
	buf = append(buf, `","exp":"`...)
	buf = append(buf, expiry...)
	buf = append(buf, `","cvv":"`...)
	buf = append(buf, cvv...)
	buf = append(buf, `"}`...)
	return buf, nil
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Reference derives a keyed, non-reversible identifier for a PAN that is
// safe to log. Equal PANs under the same key give equal references.
func Reference(key, pan []byte) string {
	if len(key) > blake2b.Size {
		key = key[:blake2b.Size]
	}
	h, _ := blake2b.New(16, key)
	h.Write(pan)
	return hex.EncodeToString(h.Sum(nil))
}
