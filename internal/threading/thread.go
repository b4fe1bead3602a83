// Package threading reconstructs conversations from canonical emails using
// header-chain linkage first and a subject/participant heuristic as fallback.
package threading

import (
	"sort"
	"strconv"
	"strings"

	"mailhook/internal/models"
)

// Engine threads messages into conversations. localAddresses identifies the
// relay's own sending addresses so messages can be classified as outbound.
type Engine struct {
	localAddresses map[string]bool
}

// NewEngine creates a threading engine. addrs are the local party's addresses.
func NewEngine(addrs []string) *Engine {
	local := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		local[strings.ToLower(strings.TrimSpace(a))] = true
	}
	return &Engine{localAddresses: local}
}

// Thread orders and annotates one conversation's messages. The confidence
// reflects how the set would have been grouped: high when header chains
// connect every message, medium when the subject+participant heuristic
// matches, low otherwise. Deterministic for a fixed input sequence.
func (e *Engine) Thread(messages []models.CanonicalEmail) models.Thread {
	if len(messages) == 0 {
		return models.Thread{}
	}
	threads := e.Group(messages)
	if len(threads) == 1 {
		return threads[0]
	}

	// Caller asserted these belong together but neither headers nor the
	// heuristic connect them all; keep them as one low-confidence thread
	return e.assemble(messages, models.ConfidenceLow, models.ThreadingMethodSubject)
}

// Group partitions a batch of messages into conversations. Messages
// connected through Message-ID / In-Reply-To / References chains always
// share a thread (confidence high). Messages without linking headers fall
// back to normalized subject plus participant overlap: a unique candidate
// group yields medium confidence, picking the most-overlapping of several
// candidates yields low. Threads come back ordered by oldest message.
func (e *Engine) Group(messages []models.CanonicalEmail) []models.Thread {
	if len(messages) == 0 {
		return nil
	}

	// Union-find over message ids and every id they reference
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	// A missing Message-ID must never link unrelated messages together
	idOf := func(i int) string {
		if messages[i].MessageID != "" {
			return messages[i].MessageID
		}
		return "\x00anonymous-" + strconv.Itoa(i)
	}

	for i, msg := range messages {
		for _, id := range referencedIDs(msg) {
			union(idOf(i), id)
		}
	}

	// Materialize header groups in input order
	type group struct {
		members    []int
		confidence models.ThreadConfidence
		method     string
	}
	var groups []group
	groupByRoot := make(map[string]int)

	for i := range messages {
		root := find(idOf(i))
		if g, ok := groupByRoot[root]; ok {
			groups[g].members = append(groups[g].members, i)
			continue
		}
		groupByRoot[root] = len(groups)
		groups = append(groups, group{members: []int{i}})
	}

	for g := range groups {
		if len(groups[g].members) > 1 {
			groups[g].confidence = models.ConfidenceHigh
			groups[g].method = models.ThreadingMethodHeaders
		}
	}

	// Heuristic pass: merge singleton groups into subject/participant matches
	merged := make(map[int]bool)
	mergeInto := func(dst, src int, c models.ThreadConfidence) {
		groups[dst].members = append(groups[dst].members, groups[src].members...)
		if groups[dst].confidence == "" || rank(c) < rank(groups[dst].confidence) {
			groups[dst].confidence = c
		}
		groups[dst].method = models.ThreadingMethodSubject
		merged[src] = true
	}
	for g := range groups {
		if len(groups[g].members) != 1 || merged[g] {
			continue
		}
		self := messages[groups[g].members[0]]
		subject := NormalizeSubject(self.Subject)
		parts := participants(self)

		var candidates []int
		overlapBy := make(map[int]int)
		for h := range groups {
			if h == g || merged[h] {
				continue
			}
			if NormalizeSubject(messages[groups[h].members[0]].Subject) != subject {
				continue
			}
			overlap := 0
			for _, m := range groups[h].members {
				for p := range participants(messages[m]) {
					if parts[p] {
						overlap++
					}
				}
			}
			if overlap > 0 {
				candidates = append(candidates, h)
				overlapBy[h] = overlap
			}
		}

		switch len(candidates) {
		case 0:
			groups[g].confidence = models.ConfidenceHigh
			groups[g].method = models.ThreadingMethodSingleGroup
		case 1:
			mergeInto(candidates[0], g, models.ConfidenceMedium)
		default:
			best := candidates[0]
			for _, h := range candidates[1:] {
				if overlapBy[h] > overlapBy[best] {
					best = h
				}
			}
			mergeInto(best, g, models.ConfidenceLow)
		}
	}

	threads := make([]models.Thread, 0, len(groups))
	for g := range groups {
		if merged[g] {
			continue
		}
		sort.Ints(groups[g].members)
		batch := make([]models.CanonicalEmail, 0, len(groups[g].members))
		for _, m := range groups[g].members {
			batch = append(batch, messages[m])
		}
		confidence := groups[g].confidence
		method := groups[g].method
		if method == "" {
			confidence = models.ConfidenceHigh
			method = models.ThreadingMethodSingleGroup
		}
		threads = append(threads, e.assemble(batch, confidence, method))
	}

	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].Messages[0].Date.Before(threads[j].Messages[0].Date)
	})
	return threads
}

// rank orders confidences from weakest to strongest
func rank(c models.ThreadConfidence) int {
	switch c {
	case models.ConfidenceLow:
		return 0
	case models.ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

// referencedIDs lists every message id this message points at
func referencedIDs(msg models.CanonicalEmail) []string {
	ids := make([]string, 0, 1+len(msg.References))
	if msg.InReplyTo != nil && *msg.InReplyTo != "" {
		ids = append(ids, *msg.InReplyTo)
	}
	ids = append(ids, msg.References...)
	return ids
}

func participants(msg models.CanonicalEmail) map[string]bool {
	set := make(map[string]bool)
	for _, group := range []models.AddressGroup{msg.From, msg.To, msg.Cc, msg.ReplyTo} {
		for _, addr := range group.Addresses {
			set[strings.ToLower(addr.Address)] = true
		}
	}
	return set
}

// assemble orders messages and annotates them with thread-relative metadata
func (e *Engine) assemble(messages []models.CanonicalEmail, confidence models.ThreadConfidence, method string) models.Thread {
	type indexed struct {
		email models.CanonicalEmail
		order int
	}

	sorted := make([]indexed, len(messages))
	for i, msg := range messages {
		sorted[i] = indexed{email: msg, order: i}
	}

	// Ascending by timestamp; a message without a timestamp sorts after all
	// timestamped ones; ties keep the original input order
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].email.Date, sorted[j].email.Date
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		if a.Equal(b) {
			return sorted[i].order < sorted[j].order
		}
		return a.Before(b)
	})

	thread := models.Thread{
		Confidence:      confidence,
		ThreadingMethod: method,
		Messages:        make([]models.ThreadMessage, 0, len(sorted)),
	}

	for pos, item := range sorted {
		tm := models.ThreadMessage{
			CanonicalEmail: item.email,
			Type:           e.classify(item.email),
			ThreadPosition: pos,
		}
		tm.ExtractedText, tm.ExtractedHTML = ExtractNewContent(item.email)
		thread.Messages = append(thread.Messages, tm)
	}

	return thread
}

// classify marks a message outbound when its sender is a local address
func (e *Engine) classify(msg models.CanonicalEmail) models.MessageType {
	for _, addr := range msg.From.Addresses {
		if e.localAddresses[strings.ToLower(addr.Address)] {
			return models.MessageOutbound
		}
	}
	return models.MessageInbound
}

// NormalizeSubject strips reply/forward prefixes and folds case and
// whitespace so subject comparison survives mail client rewriting
func NormalizeSubject(subject string) string {
	subject = strings.ToLower(strings.TrimSpace(subject))

	prefixes := []string{"re:", "fwd:", "fw:", "aw:", "wg:"}
	for {
		trimmed := false
		for _, prefix := range prefixes {
			if strings.HasPrefix(subject, prefix) {
				subject = strings.TrimSpace(strings.TrimPrefix(subject, prefix))
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}

	return strings.Join(strings.Fields(subject), " ")
}
