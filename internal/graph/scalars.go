package graph

import (
	"encoding/json"
	"fmt"
	"time"

	gql "github.com/99designs/gqlgen/graphql"
)

// DateTime is the DateTime scalar.
type DateTime struct {
	time.Time
}

func newDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

func newDateTimePtr(t *time.Time) *DateTime {
	if t == nil {
		return nil
	}
	d := newDateTime(*t)
	return &d
}

func (DateTime) ImplementsGraphQLType(name string) bool {
	return name == "DateTime"
}

func (t *DateTime) UnmarshalGraphQL(input interface{}) error {
	switch v := input.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("invalid DateTime %q: %w", v, err)
		}
		t.Time = parsed
		return nil
	default:
		return fmt.Errorf("wrong type for DateTime: %T", input)
	}
}

func (t DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Upload is the Upload scalar. Values are placed into the operation
// variables by the multipart transport.
type Upload struct {
	gql.Upload
}

func (Upload) ImplementsGraphQLType(name string) bool {
	return name == "Upload"
}

func (u *Upload) UnmarshalGraphQL(input interface{}) error {
	switch v := input.(type) {
	case gql.Upload:
		u.Upload = v
		return nil
	case *gql.Upload:
		if v == nil {
			return fmt.Errorf("upload is nil")
		}
		u.Upload = *v
		return nil
	default:
		return fmt.Errorf("wrong type for Upload: %T (files must be sent as multipart form data)", input)
	}
}
