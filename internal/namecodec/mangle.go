package namecodec

import (
	"fmt"
	"strings"

	"github.com/discforge/isoforge/internal/isoerr"
)

// Mangle resolves duplicate translated names within one directory listing
// into a set of names unique under byte-equality, following spec §4.1 step
// 3-5: a numeric suffix is inserted before the extension, widening from 1 to
// 7 decimal digits; the stem is trimmed first to keep the extension intact,
// and only once the stem is exhausted is the extension itself trimmed,
// never below 3 characters. names must already be in the directory's final
// collation order; the first occurrence of any name is left untouched.
func Mangle(names []string, maxTotalLen int) ([]string, error) {
	result := make([]string, len(names))
	seen := make(map[string]struct{}, len(names))

	for i, name := range names {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			result[i] = name
			continue
		}
		stem, ext := splitExt(name)
		mangled, err := mangleName(stem, ext, seen, maxTotalLen)
		if err != nil {
			return nil, err
		}
		seen[mangled] = struct{}{}
		result[i] = mangled
	}
	return result, nil
}

func splitExt(name string) (stem, ext string) {
	dot := strings.LastIndex(name, ".")
	if dot < 0 {
		return name, ""
	}
	return name[:dot], name[dot+1:]
}

func mangleName(stem, ext string, seen map[string]struct{}, maxTotalLen int) (string, error) {
	for width := 1; width <= 7; width++ {
		limit := 1
		for k := 0; k < width; k++ {
			limit *= 10
		}
		for n := 0; n < limit; n++ {
			suffix := fmt.Sprintf("%0*d", width, n)
			candidate := buildCandidate(stem, suffix, ext, maxTotalLen)
			if _, dup := seen[candidate]; !dup {
				return candidate, nil
			}
		}
	}
	return "", isoerr.MangleTooManyFiles
}

// buildCandidate assembles stem+suffix(+.ext), trimming the stem first and
// the extension only as a last resort (never below 3 characters) to fit
// maxTotalLen.
func buildCandidate(stem, suffix, ext string, maxTotalLen int) string {
	extPart := 0
	if ext != "" {
		extPart = 1 + len(ext)
	}
	total := len(stem) + len(suffix) + extPart
	if total > maxTotalLen {
		overflow := total - maxTotalLen
		trim := overflow
		if trim > len(stem) {
			trim = len(stem)
		}
		stem = stem[:len(stem)-trim]
		overflow -= trim
		if overflow > 0 && ext != "" {
			extTrim := overflow
			minExt := 3
			if len(ext)-extTrim < minExt {
				extTrim = len(ext) - minExt
				if extTrim < 0 {
					extTrim = 0
				}
			}
			ext = ext[:len(ext)-extTrim]
		}
	}
	if ext == "" {
		return stem + suffix
	}
	return stem + suffix + "." + ext
}
