package mongo

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

// fieldPaths maps query fields to posting document paths.
var fieldPaths = map[core.Field]string{
	core.FieldTitle:              "title",
	core.FieldOrganization:       "organizationRef",
	core.FieldPostingKey:         "postingKey",
	core.FieldOpeningDate:        "openingDate",
	core.FieldState:              "state",
	core.FieldCity:               "city",
	core.FieldZipCode:            "zipCode",
	core.FieldSkills:             "skills",
	core.FieldSoftSkills:         "softSkills",
	core.FieldStatus:             "status",
	core.FieldSalaryType:         "salaryType",
	core.FieldDegreeLevels:       "degreeLevels",
	core.FieldQualifications:     "qualifications",
	core.FieldClassificationCode: "SOC",
}

// buildFilter renders pred as a find filter. An empty predicate renders as
// an empty document, which matches everything.
func buildFilter(pred core.Predicate) (bson.D, error) {
	filter := bson.D{}
	for _, c := range pred.Conditions {
		path, ok := fieldPaths[c.Field]
		if !ok {
			return nil, fmt.Errorf("no document path for field %q", c.Field)
		}

		var value any
		switch c.Op {
		case core.OpEquals:
			value = equalityValue(c)
		case core.OpContainsFold:
			value = primitive.Regex{Pattern: regexp.QuoteMeta(c.Value), Options: "i"}
		case core.OpAll:
			value = bson.D{{Key: "$all", Value: c.Values}}
		case core.OpAny:
			value = bson.D{{Key: "$in", Value: c.Values}}
		case core.OpBetween:
			value = bson.D{
				{Key: "$gte", Value: c.From.UTC()},
				{Key: "$lte", Value: c.To.UTC()},
			}
		default:
			return nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
		filter = append(filter, bson.E{Key: path, Value: value})
	}
	return filter, nil
}

// equalityValue converts organization references to ObjectIDs. A reference
// that does not parse is compared as a string and matches nothing.
func equalityValue(c core.Condition) any {
	if c.Field == core.FieldOrganization {
		if id, err := primitive.ObjectIDFromHex(c.Value); err == nil {
			return id
		}
	}
	return c.Value
}

// aggregatePipeline renders a grouped count. Every pipeline ends with
// documents of the form {_id: key, count: n}.
func aggregatePipeline(spec core.ReportSpec) (bson.A, error) {
	path, ok := fieldPaths[spec.Field]
	if !ok {
		return nil, fmt.Errorf("no document path for field %q", spec.Field)
	}

	group := bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$" + path},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}

	if spec.JoinOrganization {
		return bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: "organizationRef", Value: bson.D{{Key: "$ne", Value: nil}}}}}},
			group,
			bson.D{{Key: "$lookup", Value: bson.D{
				{Key: "from", Value: organizationsCollection},
				{Key: "localField", Value: "_id"},
				{Key: "foreignField", Value: "_id"},
				{Key: "as", Value: "organization"},
			}}},
			bson.D{{Key: "$unwind", Value: "$organization"}},
			bson.D{{Key: "$project", Value: bson.D{
				{Key: "_id", Value: "$organization.name"},
				{Key: "count", Value: 1},
			}}},
		}, nil
	}

	if spec.Unwind {
		return bson.A{
			bson.D{{Key: "$unwind", Value: "$" + path}},
			group,
		}, nil
	}
	return bson.A{group}, nil
}
