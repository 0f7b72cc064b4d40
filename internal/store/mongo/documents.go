package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

// organizationDoc is the stored shape of an organization.
type organizationDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Key      string             `bson:"organizationKey"`
	Name     string             `bson:"name"`
	Industry *string            `bson:"industry"`
}

// postingDoc is the stored shape of a posting. _id is left to the server
// and preserved across replacements.
type postingDoc struct {
	Key             string  `bson:"postingKey"`
	Title           string  `bson:"title"`
	NormalizedTitle string  `bson:"normalizedTitle"`
	Status          string  `bson:"status"`
	Industry        *string `bson:"industry"`
	City            string  `bson:"city"`
	State           string  `bson:"state"`
	ZipCode         string  `bson:"zipCode"`

	OpeningDate time.Time  `bson:"openingDate"`
	ClosingDate *time.Time `bson:"closingDate"`

	SalaryRangeText string  `bson:"salaryRange"`
	SalaryType      *string `bson:"salaryType"`
	SalaryAvg       float64 `bson:"annualSalaryAvg"`
	SalaryMin       float64 `bson:"annualSalaryMin"`
	SalaryMax       float64 `bson:"annualSalaryMax"`

	Skills           []string  `bson:"skills"`
	SkillWeights     []float64 `bson:"skillWeights"`
	SoftSkills       []string  `bson:"softSkills"`
	SoftSkillWeights []float64 `bson:"softSkillWeights"`

	Qualifications []string `bson:"qualifications"`
	DegreeMin      *string  `bson:"degreeMin"`
	DegreeLevels   []string `bson:"degreeLevels"`
	Certification  *string  `bson:"certification"`

	ClassificationCode        string  `bson:"SOC"`
	ClassificationProbability float64 `bson:"SOCProbability"`

	Organization *primitive.ObjectID `bson:"organizationRef"`
	IngestedAt   time.Time           `bson:"ingestedAt"`
}

func emptyIfNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// refToObjectID parses a reference issued by this store. A reference that
// is not an ObjectID hex string is stored as null.
func refToObjectID(ref *core.OrganizationRef) *primitive.ObjectID {
	if ref == nil {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(string(*ref))
	if err != nil {
		return nil
	}
	return &id
}

func toPostingDoc(p core.Posting) postingDoc {
	return postingDoc{
		Key:                       p.Key,
		Title:                     p.Title,
		NormalizedTitle:           p.NormalizedTitle,
		Status:                    p.Status,
		Industry:                  p.Industry,
		City:                      p.City,
		State:                     p.State,
		ZipCode:                   p.ZipCode,
		OpeningDate:               p.OpeningDate.UTC(),
		ClosingDate:               p.ClosingDate,
		SalaryRangeText:           p.SalaryRangeText,
		SalaryType:                p.SalaryType,
		SalaryAvg:                 p.SalaryAvg,
		SalaryMin:                 p.SalaryMin,
		SalaryMax:                 p.SalaryMax,
		Skills:                    emptyIfNil(p.Skills),
		SkillWeights:              emptyIfNil(p.SkillWeights),
		SoftSkills:                emptyIfNil(p.SoftSkills),
		SoftSkillWeights:          emptyIfNil(p.SoftSkillWeights),
		Qualifications:            emptyIfNil(p.Qualifications),
		DegreeMin:                 p.DegreeMin,
		DegreeLevels:              emptyIfNil(p.DegreeLevels),
		Certification:             p.Certification,
		ClassificationCode:        p.ClassificationCode,
		ClassificationProbability: p.ClassificationProbability,
		Organization:              refToObjectID(p.Organization),
		IngestedAt:                p.IngestedAt.UTC(),
	}
}

func (d postingDoc) toPosting() core.Posting {
	p := core.Posting{
		Key:                       d.Key,
		Title:                     d.Title,
		NormalizedTitle:           d.NormalizedTitle,
		Status:                    d.Status,
		Industry:                  d.Industry,
		City:                      d.City,
		State:                     d.State,
		ZipCode:                   d.ZipCode,
		OpeningDate:               d.OpeningDate.UTC(),
		SalaryRangeText:           d.SalaryRangeText,
		SalaryType:                d.SalaryType,
		SalaryAvg:                 d.SalaryAvg,
		SalaryMin:                 d.SalaryMin,
		SalaryMax:                 d.SalaryMax,
		Skills:                    emptyIfNil(d.Skills),
		SkillWeights:              emptyIfNil(d.SkillWeights),
		SoftSkills:                emptyIfNil(d.SoftSkills),
		SoftSkillWeights:          emptyIfNil(d.SoftSkillWeights),
		Qualifications:            emptyIfNil(d.Qualifications),
		DegreeMin:                 d.DegreeMin,
		DegreeLevels:              emptyIfNil(d.DegreeLevels),
		Certification:             d.Certification,
		ClassificationCode:        d.ClassificationCode,
		ClassificationProbability: d.ClassificationProbability,
		IngestedAt:                d.IngestedAt.UTC(),
	}
	if d.ClosingDate != nil {
		t := d.ClosingDate.UTC()
		p.ClosingDate = &t
	}
	if d.Organization != nil {
		ref := core.OrganizationRef(d.Organization.Hex())
		p.Organization = &ref
	}
	return p
}
