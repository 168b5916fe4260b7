package adlibrary

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// NormalizeBrandName canonicalizes a brand name for matching: lowercased,
// trimmed, inner whitespace collapsed.
func NormalizeBrandName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// DisplayBrandName renders a normalized brand name for reports.
func DisplayBrandName(name string) string {
	return titleCaser.String(NormalizeBrandName(name))
}

// ResolvePageID finds the library page id for a brand name. Exact
// normalized-name matches win; among several, verified pages beat
// unverified and higher like counts break remaining ties. Falls back to
// the first result when nothing matches exactly.
func ResolvePageID(ctx context.Context, client Client, brandName string, searchLimit int) (string, error) {
	pages, err := client.SearchPages(ctx, brandName, searchLimit)
	if err != nil {
		return "", eris.Wrapf(err, "adlibrary: resolve page for %q", brandName)
	}
	if len(pages) == 0 {
		return "", eris.Errorf("adlibrary: no pages found for %q", brandName)
	}

	want := NormalizeBrandName(brandName)
	best := -1
	for i, p := range pages {
		if NormalizeBrandName(p.Name) != want {
			continue
		}
		if best == -1 || betterPage(pages[i], pages[best]) {
			best = i
		}
	}
	if best == -1 {
		return pages[0].ID, nil
	}
	return pages[best].ID, nil
}

func betterPage(a, b Page) bool {
	if a.Verified != b.Verified {
		return a.Verified
	}
	return a.Likes > b.Likes
}
