package engine

import (
	"context"
	"fmt"
	"strings"

	"anchorline.app/resolver/common"
	"anchorline.app/resolver/internal/domain"
	"anchorline.app/resolver/internal/model"
)

// DomainPolicy decides which sender domains may carry domain-level signal.
// The domain generator and the reinforcement loop share one policy so both
// ends agree on what an "external" domain is: free-mail providers and
// internal staff domains are excluded on both the read and the write side.
type DomainPolicy struct {
	freeMail map[string]struct{}
	staff    map[string]struct{}
}

func NewDomainPolicy(freeMail, staff []string) DomainPolicy {
	p := DomainPolicy{
		freeMail: make(map[string]struct{}, len(freeMail)),
		staff:    make(map[string]struct{}, len(staff)),
	}
	for _, d := range freeMail {
		p.freeMail[strings.ToLower(d)] = struct{}{}
	}
	for _, d := range staff {
		p.staff[strings.ToLower(d)] = struct{}{}
	}
	return p
}

// External reports whether a domain is neither free-mail nor staff.
func (p DomainPolicy) External(dom string) bool {
	dom = strings.ToLower(dom)
	if dom == "" {
		return false
	}
	if _, ok := p.freeMail[dom]; ok {
		return false
	}
	if _, ok := p.staff[dom]; ok {
		return false
	}
	return true
}

// domainGenerator matches the sender's domain against learned domain→entity
// patterns. Non-external domains never produce candidates: a gmail.com
// sender says nothing about which client a message concerns. An active
// domain→skip pattern suppresses the whole strategy for that record.
type domainGenerator struct {
	policy DomainPolicy
}

func (domainGenerator) Name() string { return "domain_pattern" }

func (g domainGenerator) Generate(_ context.Context, rec *model.Record, _ *CatalogSnapshot, pat *PatternSnapshot) []domain.Candidate {
	address, err := common.NormalizeAddress(rec.SenderAddress)
	if err != nil {
		return nil
	}
	dom := common.AddressDomain(address)
	if !g.policy.External(dom) {
		return nil
	}
	if _, skip := pat.SkipFor(dom); skip {
		return nil
	}

	var out []domain.Candidate
	for _, p := range pat.DomainsFor(dom) {
		out = append(out, domain.Candidate{
			EntityCode:     p.TargetEntityCode,
			Score:          p.Confidence,
			Method:         model.MethodDomainPattern,
			Evidence:       fmt.Sprintf("domain %s matched pattern (confidence %.2f)", dom, p.Confidence),
			PatternID:      p.ID,
			PatternLastUse: p.LastUsedAt,
		})
	}
	return out
}
