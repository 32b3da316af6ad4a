package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker answers whether a sender's domain is on the configured whitelist.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a whitelist checker. Domains are normalized to lower
// case.
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	if len(normalized) > 0 && logger != nil {
		logger.Info("initialized sender whitelist", zap.Strings("domains", normalized))
	}
	return &Checker{domains: normalized, logger: logger}
}

// IsWhitelisted checks the sender address against the whitelist. The address
// may be bare ("a@b.com") or display form ("A B <a@b.com>").
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	addr := from
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.Index(addr[start:], ">"); end > 0 {
			addr = addr[start+1 : start+end]
		}
	}
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(parts[1]))

	for _, d := range c.domains {
		if d == domain {
			if c.logger != nil {
				c.logger.Debug("sender domain is whitelisted",
					zap.String("domain", domain),
					zap.String("sender", from))
			}
			return true
		}
	}
	return false
}
