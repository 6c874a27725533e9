package types

import (
	"os"

	"github.com/BurntSushi/toml"
)

// LoadConstants reads protocol Constants from a TOML file, the way drand's
// DKG store decodes its DBStateTOML twin.
func LoadConstants(path string) (Constants, error) {
	var c Constants
	f, err := os.Open(path)
	if err != nil {
		return Constants{}, err
	}
	defer f.Close()

	if _, err := toml.NewDecoder(f).Decode(&c); err != nil {
		return Constants{}, err
	}
	if err := c.Validate(); err != nil {
		return Constants{}, err
	}
	return c, nil
}
