package types

import (
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// String cells order under the active collation. The default is a
// plain byte comparison; callers wanting locale aware ordering
// install a collator for their language tag.
var (
	collationMu sync.Mutex
	collator    *collate.Collator
)

func SetCollation(tag language.Tag) {
	collationMu.Lock()
	defer collationMu.Unlock()

	collator = collate.New(tag)
}

func ClearCollation() {
	collationMu.Lock()
	defer collationMu.Unlock()

	collator = nil
}

func CompareStrings(a, b string) int {
	collationMu.Lock()
	c := collator
	collationMu.Unlock()

	if c != nil {
		return c.CompareString(a, b)
	}

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
