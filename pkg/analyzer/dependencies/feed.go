package dependencies

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// VersionFeed answers what the latest released version of a package is.
// The analyzer never talks to a registry itself; outdated detection only
// runs when the caller supplies a feed.
type VersionFeed interface {
	// Latest returns the newest known version for a package name, or false
	// when the feed has no entry for it.
	Latest(name string) (string, bool)
}

// NullFeed knows nothing. With it, outdated detection is a no-op.
type NullFeed struct{}

func (NullFeed) Latest(string) (string, bool) { return "", false }

// feedSchema constrains a feed document to a flat name-to-version object,
// so a malformed feed fails loading instead of silently flagging nothing.
const feedSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "string",
		"minLength": 1
	}
}`

// FileFeed is a VersionFeed loaded from a static JSON document mapping
// package names to their latest versions.
type FileFeed struct {
	latest map[string]string
}

// LoadFeed reads and validates a feed file.
func LoadFeed(path string) (*FileFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading version feed: %w", err)
	}
	feed, err := ParseFeed(data)
	if err != nil {
		return nil, fmt.Errorf("version feed %s: %w", path, err)
	}
	return feed, nil
}

// ParseFeed validates feed bytes against the feed schema and builds the
// lookup table.
func ParseFeed(data []byte) (*FileFeed, error) {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(feedSchema))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("feed.schema.json", schemaDoc); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("feed.schema.json")
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, err
	}

	var latest map[string]string
	if err := json.Unmarshal(data, &latest); err != nil {
		return nil, err
	}
	return &FileFeed{latest: latest}, nil
}

// Latest implements VersionFeed.
func (f *FileFeed) Latest(name string) (string, bool) {
	v, ok := f.latest[name]
	return v, ok
}

// Len returns the number of packages the feed knows about.
func (f *FileFeed) Len() int { return len(f.latest) }
