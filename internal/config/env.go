package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no --env-file flag is given.
const DefaultEnvFile = ".env"

// LoadEnv exports the variables of a dotenv file so the WEFT_* overrides can
// live next to weft.yaml. Variables already set in the environment win.
// A missing file is not an error when path is the default one.
func LoadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}
