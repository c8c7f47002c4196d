package blacklist

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Match reports which trigger fired for a message. Trigger is the matched
// alias (stored case), not the whole alias group.
type Match struct {
	Trigger string
	Action  Action
	Reason  string
}

type aliasPattern struct {
	alias string
	re    *regexp.Regexp
}

// compiled is one chat's rule with its patterns built. rule is nil when the
// chat has no rule or an empty trigger set; caching that avoids a store read
// per message.
type compiled struct {
	rule     *Rule
	combined *regexp.Regexp
	aliases  []aliasPattern
}

type patternCache struct {
	data *expirable.LRU[int64, *compiled]
}

func newPatternCache() *patternCache {
	return &patternCache{
		data: expirable.NewLRU[int64, *compiled](1024, nil, 10*time.Minute),
	}
}

func (c *patternCache) Get(chatID int64) (*compiled, bool) {
	return c.data.Get(chatID)
}

func (c *patternCache) Set(chatID int64, cmp *compiled) {
	c.data.Add(chatID, cmp)
}

func (c *patternCache) Invalidate(chatID int64) {
	c.data.Remove(chatID)
}

// boundaryPattern requires the trigger to be preceded and followed by either
// the start/end of the text or a non-word character, so "ass" never matches
// inside "class". Triggers are compared against the lower-cased text.
func boundaryPattern(alias string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?:^|\W)` + regexp.QuoteMeta(strings.ToLower(alias)) + `(?:\W|$)`)
}

func compile(rule *Rule) (*compiled, error) {
	if rule == nil || len(rule.Triggers) == 0 {
		return &compiled{}, nil
	}
	cmp := &compiled{rule: rule}
	var quoted []string
	for _, trigger := range rule.Triggers {
		for _, alias := range strings.Split(trigger, AliasSeparator) {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			re, err := boundaryPattern(alias)
			if err != nil {
				return nil, fmt.Errorf("compiling trigger %q: %w", alias, err)
			}
			cmp.aliases = append(cmp.aliases, aliasPattern{alias: alias, re: re})
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(alias)))
		}
	}
	if len(cmp.aliases) == 0 {
		return &compiled{}, nil
	}
	combined, err := regexp.Compile(`(?:^|\W)(?:` + strings.Join(quoted, "|") + `)(?:\W|$)`)
	if err != nil {
		return nil, fmt.Errorf("compiling blacklist pattern: %w", err)
	}
	cmp.combined = combined
	return cmp, nil
}

func (s *Store) compiledFor(ctx context.Context, chatID int64) (*compiled, error) {
	if cmp, ok := s.patterns.Get(chatID); ok {
		return cmp, nil
	}
	rule, ok, err := s.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !ok {
		rule = nil
	}
	cmp, err := compile(rule)
	if err != nil {
		return nil, err
	}
	s.patterns.Set(chatID, cmp)
	return cmp, nil
}

// Match scans message text against the chat's trigger set. The text is
// lower-cased once; triggers are scanned in stored order and the first match
// wins, so at most one trigger fires per message. Returns nil when nothing
// matches or the chat has no triggers.
func (s *Store) Match(ctx context.Context, chatID int64, text string) (*Match, error) {
	cmp, err := s.compiledFor(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if cmp.rule == nil {
		return nil, nil
	}
	lower := strings.ToLower(text)
	if !cmp.combined.MatchString(lower) {
		return nil, nil
	}
	for _, ap := range cmp.aliases {
		if ap.re.MatchString(lower) {
			return &Match{
				Trigger: ap.alias,
				Action:  cmp.rule.Action,
				Reason:  cmp.rule.RenderReason(ap.alias),
			}, nil
		}
	}
	// combined pattern hit but no individual alias did; should not happen
	return nil, nil
}
