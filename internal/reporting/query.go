package reporting

import (
	"strconv"
	"strings"
)

// derivedPrefix marks CDEF names computed from a transform.
const derivedPrefix = "c"

// escapeColons escapes the rrdtool field separator inside paths.
// Params: path archive path.
// Returns: path with ":" written as "\:".
func escapeColons(path string) string {
	return strings.ReplaceAll(path, ":", `\:`)
}

// series is the generated naming for one source.
type series struct {
	name      string
	transform string
}

// ref returns the name other expressions use to reference this series.
// Params: none.
// Returns: derived name when a transform is set, raw name otherwise.
func (s series) ref() string {
	if s.transform != "" {
		return derivedPrefix + s.name
	}
	return s.name
}

// expandRefs substitutes every %name_<i>% with resolve(i).
// Params: template macro text; resolve maps index to series name.
// Returns: expanded text; unknown indices are left untouched (rejected at registration).
func expandRefs(template string, defs []series, resolve func(series) string) string {
	return reNameRef.ReplaceAllStringFunc(template, func(match string) string {
		idx, err := strconv.Atoi(match[len("%name_") : len(match)-1])
		if err != nil || idx < 0 || idx >= len(defs) {
			return match
		}
		return resolve(defs[idx])
	})
}

// expandTransform resolves a source transform.
// %name% is the own raw series; %name_<i>% is the derived series of source i when it has a transform.
// Params: own series; defs all series in source order.
// Returns: RPN expression without macros.
func expandTransform(own series, defs []series) string {
	expr := strings.ReplaceAll(own.transform, namePlaceholder, own.name)
	return expandRefs(expr, defs, series.ref)
}

// BuildQuery expands a family into rrdtool xport arguments.
// Params: layout storage root; f family; identifier instance name (ignored for unkeyed families).
// Returns: DEF tokens in source order, one CDEF/XPORT group per source, then extra tokens;
// RequestError when the identifier is not a single directory-name fragment.
// %name_<i>% resolves to the derived name of transformed sources in transforms and extra fragments.
func BuildQuery(layout Layout, f *Family, identifier string) ([]string, error) {
	if len(f.Sources) == 0 {
		return nil, configErrorf(f.Name, "no sources defined")
	}
	if err := layout.CheckIdentifier(f, identifier); err != nil {
		return nil, err
	}

	defs := make([]series, len(f.Sources))
	args := make([]string, 0, len(f.Sources)*3)
	for idx, source := range f.Sources {
		defs[idx] = series{name: source.SeriesName(), transform: source.Transform}
		path := escapeColons(layout.File(f, source, identifier))
		args = append(args, "DEF:"+defs[idx].name+"="+path+":"+source.DS+":AVERAGE")
	}

	for _, def := range defs {
		if def.transform == "" {
			args = append(args, "XPORT:"+def.name+":"+def.name)
			continue
		}
		derived := def.ref()
		args = append(args,
			"CDEF:"+derived+"="+expandTransform(def, defs),
			"XPORT:"+derived+":"+def.name,
		)
	}

	if f.Extra != "" {
		args = append(args, strings.Fields(expandRefs(f.Extra, defs, series.ref))...)
	}
	return args, nil
}
