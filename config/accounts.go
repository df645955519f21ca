package config

import (
	"fmt"
	"os"

	"github.com/liamg/stormscan/failure"
	"gopkg.in/yaml.v3"
)

// Account is a provider project whose servers make up part of the inventory.
type Account struct {
	Name  string `yaml:"name"`
	Token string `yaml:"token"`
}

// LoadAccounts reads a YAML array of {name, token} entries.
func LoadAccounts(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Config("reading api keys", err)
	}

	var accounts []Account
	if err := yaml.Unmarshal(data, &accounts); err != nil {
		return nil, failure.Config("decoding api keys", err)
	}

	seen := map[string]bool{}
	for i, account := range accounts {
		if account.Name == "" || account.Token == "" {
			return nil, failure.Config("decoding api keys", fmt.Errorf("entry %d needs both name and token", i))
		}
		if seen[account.Name] {
			return nil, failure.Config("decoding api keys", fmt.Errorf("duplicate account name '%s'", account.Name))
		}
		seen[account.Name] = true
	}

	return accounts, nil
}
