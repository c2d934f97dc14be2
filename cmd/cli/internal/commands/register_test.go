package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRegistrationsFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "persons.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
persons:
  - userId: u1
    name: One
    imageUrl: https://img.example.com/u1.jpg
  - userId: u2
    imageUrl: https://img.example.com/u2.jpg
`), 0o600))

		persons, err := loadRegistrationsFile(path)
		require.NoError(t, err)
		require.Equal(t, []PersonConfig{
			{UserID: "u1", Name: "One", ImageURL: "https://img.example.com/u1.jpg"},
			{UserID: "u2", ImageURL: "https://img.example.com/u2.jpg"},
		}, persons)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "persons.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"persons":[{"userId":"u1","name":"One","imageUrl":"url_1"}]}`), 0o600))

		persons, err := loadRegistrationsFile(path)
		require.NoError(t, err)
		require.Equal(t, []PersonConfig{{UserID: "u1", Name: "One", ImageURL: "url_1"}}, persons)
	})

	t.Run("empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("persons: []\n"), 0o600))

		_, err := loadRegistrationsFile(path)
		require.ErrorContains(t, err, "no persons")
	})
}

func TestRegisterCmdPersons(t *testing.T) {
	cmd := &RegisterCmd{Org: "abcd"}
	_, err := cmd.persons()
	require.ErrorContains(t, err, "--user-id or --file")

	cmd.UserID = "u1"
	cmd.ImageURL = "url_1"
	persons, err := cmd.persons()
	require.NoError(t, err)
	require.Equal(t, []PersonConfig{{UserID: "u1", ImageURL: "url_1"}}, persons)
}
