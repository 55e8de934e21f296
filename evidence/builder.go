package evidence

import (
	"net/url"
	"time"

	"github.com/ruteri/challenge-oracle-client/fingerprint"
	"github.com/ruteri/challenge-oracle-client/interfaces"
)

// BuilderOpts configures a Builder. Zero values select the defaults.
type BuilderOpts struct {
	// Scheme selects the fingerprint digest (default legacy).
	Scheme fingerprint.Scheme

	// SourceBaseURL prefixes the challenge code to form the evidence source.
	SourceBaseURL string

	// SimilarityScore is reported for every item (default 0.95).
	SimilarityScore float64

	// ClaimedAge backdates the claimed publish and archive capture dates (default 24h).
	ClaimedAge time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Builder constructs evidence payloads bound to one instance. Every fingerprint
// covers the challenge code together with the instance nonce and the DID, so
// evidence built for one instance is rejected by any other. The legacy scheme
// keeps only a prefix of its input, so the binding parts always come first.
type Builder struct {
	scheme     fingerprint.Scheme
	sourceBase string
	similarity float64
	claimedAge time.Duration
	now        func() time.Time
}

func NewBuilder(opts BuilderOpts) *Builder {
	b := &Builder{
		scheme:     opts.Scheme,
		sourceBase: opts.SourceBaseURL,
		similarity: opts.SimilarityScore,
		claimedAge: opts.ClaimedAge,
		now:        opts.Now,
	}
	if b.scheme == "" {
		b.scheme = fingerprint.SchemeLegacy
	}
	if b.sourceBase == "" {
		b.sourceBase = "https://evidence.local/challenges/"
	}
	if b.similarity == 0 {
		b.similarity = 0.95
	}
	if b.claimedAge == 0 {
		b.claimedAge = 24 * time.Hour
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Build returns the evidence for one challenge of inst.
func (b *Builder) Build(inst *interfaces.ChallengeInstance, challengeID string) *interfaces.Evidence {
	now := b.now().UTC()
	claimed := now.Add(-b.claimedAge)
	source := b.sourceBase + url.PathEscape(challengeID)

	domain := source
	if u, err := url.Parse(source); err == nil && u.Host != "" {
		domain = u.Host
	}
	did := inst.DID.String()

	return &interfaces.Evidence{
		Source:                     source,
		SourceDomainHash:           b.scheme.Of(did, domain),
		ContentHash:                b.scheme.Of(inst.Nonce, did, challengeID),
		SemanticFingerprint:        b.scheme.Of(inst.Nonce, challengeID, did),
		SimilarityScore:            b.similarity,
		ClaimedPublishDate:         claimed.Format(time.RFC3339),
		ServerTimestamp:            now.Format(time.RFC3339),
		ArchiveEarliestCaptureDate: claimed.Format(time.RFC3339),
	}
}

// Items builds one evidence item per challenge code, preserving order.
func (b *Builder) Items(inst *interfaces.ChallengeInstance, challengeIDs []string) []interfaces.EvidenceItem {
	items := make([]interfaces.EvidenceItem, 0, len(challengeIDs))
	for _, id := range challengeIDs {
		items = append(items, interfaces.EvidenceItem{
			ChallengeID: id,
			Evidence:    b.Build(inst, id),
		})
	}
	return items
}
