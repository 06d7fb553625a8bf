package splitter

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultPrefixes are the namespace prefixes PRG exports attach to
// record elements. Removing them literally, before parsing, is what
// makes the fragments digestible by a plain XML decoder.
var DefaultPrefixes = []string{"prg-ad:", "gml:", "bt:", "xsi:", "xlink:"}

// Normalize rewrites a raw fragment into its namespace-free variant by
// literal prefix removal and returns the new path. The normalized file
// sits next to the raw one with a .clean.xml suffix.
func Normalize(rawPath string, prefixes []string) (string, error) {
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}

	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return "", eris.Wrapf(err, "splitter: read fragment %s", rawPath)
	}

	pairs := make([]string, 0, len(prefixes)*2)
	for _, p := range prefixes {
		pairs = append(pairs, p, "")
	}
	clean := strings.NewReplacer(pairs...).Replace(string(raw))

	outPath := strings.TrimSuffix(rawPath, ".xml") + ".clean.xml"
	if err := os.WriteFile(outPath, []byte(clean), 0o644); err != nil {
		return "", eris.Wrapf(err, "splitter: write normalized fragment %s", outPath)
	}

	return outPath, nil
}
