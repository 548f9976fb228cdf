package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
)

const upSuffix = ".up.sql"

// Catalog summarizes the embedded migration set. The checksum covers every up
// migration's name and body in version order.
type Catalog struct {
	Latest   uint
	Checksum string
	Files    []string
}

// Version renders Latest the way schema_state stores it.
func (c Catalog) Version() string {
	return strconv.FormatUint(uint64(c.Latest), 10)
}

func LoadCatalog() (Catalog, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return Catalog{}, fmt.Errorf("list migrations: %w", err)
	}

	var cat Catalog
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, upSuffix) {
			continue
		}
		version, ok := versionOf(name)
		if !ok {
			return Catalog{}, fmt.Errorf("invalid migration filename: %s", name)
		}
		cat.Latest = max(cat.Latest, version)
		cat.Files = append(cat.Files, name)
	}
	if len(cat.Files) == 0 {
		return Catalog{}, errors.New("no embedded migrations found")
	}
	slices.Sort(cat.Files)

	h := sha256.New()
	for _, name := range cat.Files {
		body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/"+name)
		if err != nil {
			return Catalog{}, fmt.Errorf("read migration %s: %w", name, err)
		}
		fmt.Fprintf(h, "%s\x00%s\x00", name, body)
	}
	cat.Checksum = hex.EncodeToString(h.Sum(nil))
	return cat, nil
}

// versionOf parses the numeric prefix of NNNN_name.up.sql.
func versionOf(name string) (uint, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found || prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(prefix, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}
