package gamedata

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchema marks game data files that do not match their JSON schema.
var ErrSchema = errors.New("gamedata: schema validation failed")

const schemaBaseURL = "https://fgoplanner.app/schemas/gamedata/"

//go:embed schemas/*.schema.json
var schemaFS embed.FS

type schemaSet struct {
	items       *jsonschema.Schema
	servant     *jsonschema.Schema
	soundtracks *jsonschema.Schema
}

var (
	schemasOnce sync.Once
	schemasVal  *schemaSet
	schemasErr  error
)

func compiledSchemas() (*schemaSet, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range []string{"enhancement", "items", "servant", "soundtracks"} {
			b, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
			if err != nil {
				schemasErr = err
				return
			}
			if err := c.AddResource(schemaBaseURL+name+".schema.json", bytes.NewReader(b)); err != nil {
				schemasErr = fmt.Errorf("schema %s: %w", name, err)
				return
			}
		}
		var s schemaSet
		compile := func(name string) *jsonschema.Schema {
			if schemasErr != nil {
				return nil
			}
			sch, err := c.Compile(schemaBaseURL + name + ".schema.json")
			if err != nil {
				schemasErr = fmt.Errorf("schema %s: %w", name, err)
			}
			return sch
		}
		s.items = compile("items")
		s.servant = compile("servant")
		s.soundtracks = compile("soundtracks")
		if schemasErr == nil {
			schemasVal = &s
		}
	})
	return schemasVal, schemasErr
}

// Validate checks every game data file under configDir against its schema.
// Load trusts its input; run Validate first on data from an untrusted source.
func Validate(configDir string) error {
	s, err := compiledSchemas()
	if err != nil {
		return err
	}

	if err := validateFile(s.items, filepath.Join(configDir, "items.json"), "items.json"); err != nil {
		return err
	}

	files, err := jsonFiles(filepath.Join(configDir, "servants"))
	if err != nil {
		return err
	}
	for _, p := range files {
		if err := validateFile(s.servant, p, "servants/"+filepath.Base(p)); err != nil {
			return err
		}
	}

	soundtracks := filepath.Join(configDir, "soundtracks.json")
	if _, err := os.Stat(soundtracks); err == nil {
		if err := validateFile(s.soundtracks, soundtracks, "soundtracks.json"); err != nil {
			return err
		}
	}
	return nil
}

func validateFile(s *jsonschema.Schema, path, name string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchema, name, err)
	}
	return nil
}
