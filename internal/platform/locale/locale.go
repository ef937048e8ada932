package locale

import (
	"encoding/hex"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

// Settings holds the process-wide active locale as an explicit, version-stamped
// value. Derived-attribute computation takes a Snapshot instead of reading the
// locale ambiently; a version bump is what triggers the background recompute
// pass over all contacts.
type Settings struct {
	mu      sync.RWMutex
	log     *logger.Logger
	current *Snapshot
}

// Snapshot is an immutable view of the active locale at one version.
type Snapshot struct {
	Tag     language.Tag
	Version int64
	// Degraded is set when the requested locale could not be parsed and
	// collation fell back to locale-neutral ordering.
	Degraded bool

	mu  sync.Mutex
	col *collate.Collator
	buf collate.Buffer
}

func NewSettings(bcp47 string, log *logger.Logger) *Settings {
	s := &Settings{log: log.With("component", "locale")}
	s.current = s.build(bcp47, 1)
	return s
}

// Set activates a new locale and returns the new version. Unparseable tags do
// not fail: collation degrades to und and the degradation is logged, per the
// rule that locale trouble never blocks a write.
func (s *Settings) Set(bcp47 string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.build(bcp47, s.current.Version+1)
	s.current = next
	s.log.Info("active locale changed", "locale", next.Tag.String(), "version", next.Version, "degraded", next.Degraded)
	return next.Version
}

// Active returns the current locale snapshot.
func (s *Settings) Active() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Settings) build(bcp47 string, version int64) *Snapshot {
	tag, err := language.Parse(strings.TrimSpace(bcp47))
	degraded := false
	if err != nil {
		tag = language.Und
		degraded = true
		s.log.Warn("collation unavailable, using locale-neutral ordering", "requested", bcp47, "error", err)
	}
	return &Snapshot{
		Tag:      tag,
		Version:  version,
		Degraded: degraded,
		col:      collate.New(tag, collate.IgnoreCase),
	}
}

// SortKey produces a byte-order-preserving collation key for text, hex encoded
// so it can be stored and compared as an ordinary string column.
func (sn *Snapshot) SortKey(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	sn.mu.Lock()
	key := sn.col.KeyFromString(&sn.buf, text)
	out := hex.EncodeToString(key)
	sn.buf.Reset()
	sn.mu.Unlock()
	return out
}

// Label buckets text for a phonebook section index: the folded first letter
// uppercased, "#" for digits and everything unbucketable.
func (sn *Snapshot) Label(text string) string {
	folded := Fold(text)
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r):
			return strings.ToUpper(string(r))
		case unicode.IsDigit(r):
			return "#"
		case unicode.IsSpace(r):
			continue
		default:
			return "#"
		}
	}
	return "#"
}

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold case- and diacritic-folds text for signal comparison. Folding is
// intentionally locale-independent so that two accounts spelling the same
// name with and without accents still produce a match signal.
func Fold(text string) string {
	out, _, err := transform.String(foldChain, strings.TrimSpace(text))
	if err != nil {
		out = strings.TrimSpace(text)
	}
	return strings.ToLower(out)
}
