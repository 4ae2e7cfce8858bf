package goSession

import (
	"strings"
	"time"
)

// SecurityReport summarises the security posture of a built service. It
// is safe to log: it carries no key material.
type SecurityReport struct {
	SigningAlgorithm string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	// MaxAccessExposure is how long an access token can keep verifying
	// after its session is revoked: zero with access blacklisting,
	// AccessTTL otherwise.
	MaxAccessExposure     time.Duration
	RefreshRotation       bool
	RefreshReuseDetection bool
	RefreshThrottle       bool
	IssuerBound           bool
	AudienceBound         bool
	KeyIDPinned           bool
	TouchOnVerify         bool
}

func (s *Service) SecurityReport() SecurityReport {
	if s == nil {
		return SecurityReport{}
	}

	exposure := s.config.JWT.AccessTTL
	if s.config.Revocation.BlacklistAccessOnSessionRevoke {
		exposure = 0
	}

	return SecurityReport{
		SigningAlgorithm:      strings.ToLower(s.config.JWT.SigningMethod),
		AccessTTL:             s.config.JWT.AccessTTL,
		RefreshTTL:            s.config.JWT.RefreshTTL,
		MaxAccessExposure:     exposure,
		RefreshRotation:       s.config.Refresh.RotateOnUse,
		RefreshReuseDetection: s.config.Refresh.RotateOnUse,
		RefreshThrottle:       s.limiter.Enabled(),
		IssuerBound:           s.config.JWT.Issuer != "",
		AudienceBound:         s.config.JWT.Audience != "",
		KeyIDPinned:           strings.TrimSpace(s.config.JWT.KeyID) != "",
		TouchOnVerify:         s.config.Session.TouchOnVerify,
	}
}
