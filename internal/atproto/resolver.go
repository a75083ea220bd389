package atproto

import (
	"fmt"

	"coffeetime/internal/models"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// ATURIComponents holds the parsed components of an AT-URI
type ATURIComponents struct {
	DID        string
	Collection string
	RKey       string
}

// ResolveATURI parses an AT-URI and returns its components
// AT-URI format: at://did:plc:abc123/social.coffeetime.alpha.coffee/<uuid>
func ResolveATURI(uri string) (*ATURIComponents, error) {
	atURI, err := syntax.ParseATURI(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid AT-URI: %w", err)
	}

	return &ATURIComponents{
		DID:        atURI.Authority().String(),
		Collection: atURI.Collection().String(),
		RKey:       atURI.RecordKey().String(),
	}, nil
}

// resolveRecord checks that a listed record belongs to the expected collection
// and repository, then converts it.
func resolveRecord[T any](
	rec Record,
	owner syntax.DID,
	expectedCollection string,
	convert func(map[string]interface{}, string) (*T, error),
) (*T, error) {
	components, err := ResolveATURI(rec.URI)
	if err != nil {
		return nil, err
	}

	if components.Collection != expectedCollection {
		return nil, fmt.Errorf("expected %s collection, got %s", expectedCollection, components.Collection)
	}
	if owner != "" && components.DID != owner.String() {
		return nil, fmt.Errorf("record %s is not in repo %s", rec.URI, owner)
	}

	result, err := convert(rec.Value, rec.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s record: %w", expectedCollection, err)
	}
	return result, nil
}

// ResolveCoffeeRecord converts a listed coffee record from owner's repo.
func ResolveCoffeeRecord(rec Record, owner syntax.DID) (*models.Coffee, error) {
	return resolveRecord(rec, owner, NSIDCoffee, RecordToCoffee)
}
