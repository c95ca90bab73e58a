package traverse

import (
	"log/slog"
	"strings"

	"github.com/use-agent/dexharvest/models"
)

// slugger maps a display name to the site's path-safe form. None of the
// replacements reintroduces a mapped character, so Slug is idempotent.
var slugger = strings.NewReplacer(
	"♀", "-f",
	"♂", "-m",
	"'", "",
	"’", "",
	".", "-",
	" ", "",
)

// Slug returns the path-safe form of a display name:
// "Nidoran♀" → "Nidoran-f", "Farfetch'd" → "Farfetchd", "Mr. Mime" → "Mr-Mime".
func Slug(name string) string {
	return slugger.Replace(name)
}

// pathSeparators keeps a display name inside one destination segment.
var pathSeparators = strings.NewReplacer("/", "_", `\`, "_")

// Naming selects how per-entry destinations are named.
type Naming string

const (
	NamingSlug    Naming = "slug"
	NamingDisplay Naming = "display"
)

// IndexDestination is where the index sheet is written.
const IndexDestination = "pokedex"

// MovesDestination returns the destination for an entry's moves sheet,
// named after the display name unless naming is NamingSlug.
func MovesDestination(e models.Entry, naming Naming) string {
	base := e.Name
	if naming == NamingSlug {
		base = e.Slug
	}
	return "moves/moves_" + pathSeparators.Replace(base)
}

// DetailURL fills template's {slug} with the lower-cased slug of the
// entry's link text.
func DetailURL(template string, e models.Entry) string {
	return strings.ReplaceAll(template, "{slug}", strings.ToLower(Slug(e.LinkText)))
}

// BuildEntries turns the index sheet's data records into the work list. The
// display name comes from the nameHeader column (column 2 when no header
// matches); the link text is its first line. Records with an empty or
// already seen display name are skipped.
func BuildEntries(sheet *models.Sheet, nameHeader string) []models.Entry {
	col := sheet.Column(nameHeader)
	if col < 0 {
		col = 1
		if len(sheet.Header) < 2 {
			col = 0
		}
	}

	seen := make(map[string]bool, len(sheet.Records))
	entries := make([]models.Entry, 0, len(sheet.Records))
	for i, rec := range sheet.Records {
		if col >= len(rec) {
			continue
		}
		cell := rec[col]
		name := strings.Join(cell.Items(), "/")
		if name == "" {
			slog.Warn("index row has no name, skipping", "row", i+1)
			continue
		}
		if seen[name] {
			slog.Info("duplicate index entry, skipping", "row", i+1, "name", name)
			continue
		}
		seen[name] = true
		link, _, _ := strings.Cut(cell.Items()[0], "/")
		entries = append(entries, models.Entry{
			Ordinal:  i + 1,
			Name:     name,
			LinkText: link,
			Slug:     Slug(name),
		})
	}
	return entries
}
