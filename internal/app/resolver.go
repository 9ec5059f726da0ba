package app

import (
	"time"
	"unicode/utf8"

	"github.com/bft-labs/offlinesync/internal/domain"
)

// DefaultSkewTolerance is the window inside which two timestamps are
// considered concurrent.
const DefaultSkewTolerance = 60 * time.Second

// Resolver decides between a local record and its remote counterpart. It is
// pure and safe for concurrent use.
type Resolver struct {
	skew time.Duration
}

// NewResolver creates a resolver. A non-positive skew uses the default.
func NewResolver(skew time.Duration) *Resolver {
	if skew <= 0 {
		skew = DefaultSkewTolerance
	}
	return &Resolver{skew: skew}
}

// Resolve applies, in order: a synced local copy yields to remote; a clearly
// newer side wins (local keeps only its authored fields); otherwise the two
// are merged per record kind.
func (r *Resolver) Resolve(c domain.Conflict) domain.Resolved {
	local, remote := c.Local, c.Remote

	if local.Synced {
		return domain.Resolved{
			Payload:    domain.CopyPayload(remote.Payload),
			UpdatedAt:  remote.UpdatedAt,
			Resolution: domain.ResolutionRemote,
		}
	}

	diff := remote.UpdatedAt.Sub(local.UpdatedAt)
	switch {
	case diff > r.skew:
		return domain.Resolved{
			Payload:    domain.CopyPayload(remote.Payload),
			UpdatedAt:  remote.UpdatedAt,
			Resolution: domain.ResolutionRemote,
		}
	case -diff > r.skew:
		return domain.Resolved{
			Payload:    overlayAuthored(local, remote),
			UpdatedAt:  local.UpdatedAt,
			Resolution: domain.ResolutionLocal,
		}
	}

	updated := local.UpdatedAt
	if remote.UpdatedAt.After(updated) {
		updated = remote.UpdatedAt
	}

	var payload map[string]any
	switch local.Kind {
	case domain.KindJournal:
		payload = mergeJournal(local.Payload, remote.Payload)
	default:
		// Assessments keep the local answers, scores and result; settings
		// keep every local key. Both reduce to an authored-field overlay.
		payload = overlayAuthored(local, remote)
	}
	return domain.Resolved{
		Payload:    payload,
		UpdatedAt:  updated,
		Resolution: domain.ResolutionMerge,
	}
}

// overlayAuthored starts from remote and copies the local kind's authored
// fields over it. Kinds without a fixed field list treat every local key as
// authored.
func overlayAuthored(local, remote domain.Record) map[string]any {
	out := domain.CopyPayload(remote.Payload)
	fields := local.Kind.AuthoredFields()
	if fields == nil {
		for k, v := range local.Payload {
			out[k] = v
		}
		return out
	}
	for _, f := range fields {
		if v, ok := local.Payload[f]; ok {
			out[f] = v
		}
	}
	return out
}

func mergeJournal(local, remote map[string]any) map[string]any {
	out := domain.CopyPayload(remote)

	lc, _ := local["content"].(string)
	rc, _ := remote["content"].(string)
	if utf8.RuneCountInString(lc) >= utf8.RuneCountInString(rc) {
		out["content"] = lc
	} else {
		out["content"] = rc
	}

	out["tags"] = unionTags(domain.StringSlice(local["tags"]), domain.StringSlice(remote["tags"]))

	for _, f := range []string{"mood", "title"} {
		if v, ok := local[f]; ok && v != "" {
			out[f] = v
		}
	}
	return out
}

// unionTags returns a ∪ b preserving first-seen order, a first.
func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
