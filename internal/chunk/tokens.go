package chunk

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoding is the BPE encoding used for token estimates.
const tokenEncoding = "cl100k_base"

var encodingOnce = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding(tokenEncoding)
})

// EstimateTokens returns an estimated token count for text. It uses the
// cl100k_base BPE when the encoding is available and falls back to the
// bytes/4 heuristic otherwise (the encoding may require a network fetch on
// first use).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := encodingOnce()
	if err != nil || enc == nil {
		return heuristicTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// heuristicTokens approximates tokens as one per four bytes, minimum one.
func heuristicTokens(text string) int {
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}
