package declared

import (
	"bytes"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/resources"
)

// LoadUsers reads and validates a users file: a sequence of name and
// email pairs.
func LoadUsers(path string) ([]resources.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("users file", path)
		}
		return nil, errors.WrapIO("read", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var users []resources.User
	if err := yaml.Unmarshal(data, &users); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	if err := ValidateUsers(users); err != nil {
		return nil, err
	}
	return users, nil
}
