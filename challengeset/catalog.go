package challengeset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// ErrDuplicateCode is returned when a catalog defines the same code twice.
var ErrDuplicateCode = errors.New("duplicate challenge set code")

type catalogEntry struct {
	Code                string   `yaml:"code" validate:"required"`
	Name                string   `yaml:"name"`
	MandatoryChallenges []string `yaml:"mandatoryChallenges" validate:"dive,required"`
	RequiredConfidence  float64  `yaml:"requiredConfidence" validate:"gte=0,lte=1"`
}

type catalogFile struct {
	ChallengeSets []catalogEntry `yaml:"challengeSets" validate:"dive"`
}

// Catalog is a local, read-only set of challenge set definitions.
type Catalog struct {
	sets map[string]*interfaces.ChallengeSet
}

// NewCatalog builds a catalog from in-memory definitions.
func NewCatalog(sets ...interfaces.ChallengeSet) (*Catalog, error) {
	c := &Catalog{sets: make(map[string]*interfaces.ChallengeSet, len(sets))}
	for i := range sets {
		set := sets[i]
		if _, ok := c.sets[set.Code]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, set.Code)
		}
		set.MandatoryChallenges = append([]string(nil), set.MandatoryChallenges...)
		c.sets[set.Code] = &set
	}
	return c, nil
}

// LoadCatalog parses a YAML catalog:
//
//	challengeSets:
//	  - code: KYC_BASIC
//	    name: Basic KYC
//	    mandatoryChallenges: [c1, c2]
//	    requiredConfidence: 0.8
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not parse challenge set catalog: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid challenge set catalog: %w", err)
	}

	sets := make([]interfaces.ChallengeSet, 0, len(file.ChallengeSets))
	for _, e := range file.ChallengeSets {
		sets = append(sets, interfaces.ChallengeSet{
			Code:                e.Code,
			Name:                e.Name,
			MandatoryChallenges: e.MandatoryChallenges,
			RequiredConfidence:  e.RequiredConfidence,
		})
	}
	return NewCatalog(sets...)
}

// LoadCatalogFile reads a YAML catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Lookup returns a copy of the set named code.
func (c *Catalog) Lookup(code string) (*interfaces.ChallengeSet, bool) {
	if c == nil {
		return nil, false
	}
	set, ok := c.sets[code]
	if !ok {
		return nil, false
	}
	cp := *set
	cp.MandatoryChallenges = append([]string(nil), set.MandatoryChallenges...)
	return &cp, true
}

// Len returns the number of sets in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.sets)
}
