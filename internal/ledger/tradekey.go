package ledger

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/odinsson/tradeledger/internal/service"
)

// maxSignatureLen bounds how much log text feeds the signature hash.
const maxSignatureLen = 6000

var signatureSpace = regexp.MustCompile(`\s+`)

// TradeKey derives the identity of the observed trading session: the
// explicit session identifier when the source exposes one, otherwise a
// stable hash of the log's collapsed text content. The key scopes the
// per-session cart cache and flags session replacement.
func TradeKey(src service.LogSource) string {
	if id := src.SessionID(); id != "" {
		return "id:" + id
	}
	var b strings.Builder
	for _, e := range src.Entries() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.Text)
	}
	sig := strings.TrimSpace(signatureSpace.ReplaceAllString(b.String(), " "))
	return "sig:" + hashSignature(sig)
}

// hashSignature is a djb2 hash over at most maxSignatureLen bytes,
// rendered as lowercase hex.
func hashSignature(s string) string {
	h := uint32(5381)
	n := len(s)
	if n > maxSignatureLen {
		n = maxSignatureLen
	}
	for i := 0; i < n; i++ {
		h = h*33 + uint32(s[i])
	}
	return strconv.FormatUint(uint64(h), 16)
}
