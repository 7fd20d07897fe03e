package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultBasePath is the collectd rrd root on the appliance.
const DefaultBasePath = "/var/db/collectd/rrd/localhost"

// reNameRef matches indexed series references inside transforms and extra fragments.
var reNameRef = regexp.MustCompile(`%name_(\d+)%`)

// namePlaceholder references the descriptor's own raw series.
const namePlaceholder = "%name%"

// DefaultAggregations lists aggregation kinds applied when a family does not override them.
var DefaultAggregations = []string{"min", "mean", "max"}

// Source describes one data series read from an rrd archive.
// Params: Type archive file stem; DS data-source name inside it; Transform optional RPN with macros; Name optional override.
// Returns: immutable descriptor.
type Source struct {
	Type      string
	DS        string
	Transform string
	Name      string
}

// SeriesName returns the generated DEF name.
// Params: none.
// Returns: Name when set, otherwise "<type>_<ds>".
func (s Source) SeriesName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type + "_" + s.DS
}

// IdentifierSource lists identifiers for a keyed family.
// Params: ctx for cancellation.
// Returns: decoded identifier names (unsorted, may contain duplicates).
type IdentifierSource interface {
	Identifiers(ctx context.Context) ([]string, error)
}

// IdentifierSourceFunc adapts a function to IdentifierSource.
type IdentifierSourceFunc func(ctx context.Context) ([]string, error)

// Identifiers calls f.
func (f IdentifierSourceFunc) Identifiers(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// Family is one registered metric family.
// Params: Name/Title/VerticalLabel are required; Plugin defaults to Name; Keyed appends "-<identifier>" to the directory.
// Returns: immutable family definition once registered.
type Family struct {
	Name             string
	Title            string
	VerticalLabel    string
	Plugin           string
	Keyed            bool
	Sources          []Source
	Extra            string
	Stacked          bool
	StackedShowTotal bool
	Aggregations     []string
	Codec            Codec
	Identifiers      IdentifierSource
}

// Description is the listing view of one family.
type Description struct {
	Name             string   `json:"name"`
	Title            string   `json:"title"`
	VerticalLabel    string   `json:"vertical_label"`
	Identifiers      []string `json:"identifiers"`
	Stacked          bool     `json:"stacked"`
	StackedShowTotal bool     `json:"stacked_show_total"`
}

func (f *Family) codec() Codec {
	if f.Codec == nil {
		return PlainCodec{}
	}
	return f.Codec
}

// plugin returns the storage directory stem.
func (f *Family) plugin() string {
	if f.Plugin == "" {
		return f.Name
	}
	return f.Plugin
}

// aggregations returns family aggregation kinds or the defaults.
func (f *Family) aggregations() []string {
	if f.Aggregations == nil {
		return DefaultAggregations
	}
	return f.Aggregations
}

// TitleFor substitutes {identifier} in the title.
// Params: identifier instance name, may be empty.
// Returns: rendered title.
func (f *Family) TitleFor(identifier string) string {
	return strings.ReplaceAll(f.Title, "{identifier}", identifier)
}

// validate checks required fields and macro references.
// Params: none.
// Returns: ConfigurationError for the first defect found.
func (f *Family) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return configErrorf("", "family name is required")
	}
	if strings.TrimSpace(f.Title) == "" {
		return configErrorf(f.Name, "title is required")
	}
	if strings.TrimSpace(f.VerticalLabel) == "" {
		return configErrorf(f.Name, "vertical label is required")
	}

	seen := make(map[string]int, len(f.Sources))
	for idx, source := range f.Sources {
		if strings.TrimSpace(source.Type) == "" {
			return configErrorf(f.Name, "source[%d] type is required", idx)
		}
		if strings.TrimSpace(source.DS) == "" {
			return configErrorf(f.Name, "source[%d] ds is required", idx)
		}
		name := source.SeriesName()
		if prev, exists := seen[name]; exists {
			return configErrorf(f.Name, "source[%d] series name %q duplicates source[%d]", idx, name, prev)
		}
		seen[name] = idx

		refs, err := nameRefs(source.Transform)
		if err != nil {
			return configErrorf(f.Name, "source[%d] transform: %v", idx, err)
		}
		for _, ref := range refs {
			if ref >= len(f.Sources) {
				return configErrorf(f.Name, "source[%d] transform references %%name_%d%% but only %d sources are defined", idx, ref, len(f.Sources))
			}
			if ref >= idx && f.Sources[ref].Transform != "" {
				return configErrorf(f.Name, "source[%d] transform references derived series of source[%d] before it is computed", idx, ref)
			}
		}
	}

	refs, err := nameRefs(f.Extra)
	if err != nil {
		return configErrorf(f.Name, "extra: %v", err)
	}
	for _, ref := range refs {
		if ref >= len(f.Sources) {
			return configErrorf(f.Name, "extra references %%name_%d%% but only %d sources are defined", ref, len(f.Sources))
		}
	}

	for _, kind := range f.Aggregations {
		if _, err := lookupAggregation(kind); err != nil {
			return configErrorf(f.Name, "%v", err)
		}
	}
	return nil
}

// nameRefs extracts indices referenced as %name_<i>%.
// Params: expr macro template.
// Returns: indices in order of appearance.
func nameRefs(expr string) ([]int, error) {
	matches := reNameRef.FindAllStringSubmatch(expr, -1)
	refs := make([]int, 0, len(matches))
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid reference %q", m[0])
		}
		refs = append(refs, idx)
	}
	return refs, nil
}

// Layout resolves archive paths under the storage root.
// Params: Base storage root directory.
// Returns: path helper.
type Layout struct {
	Base string
}

// Dir returns the instance directory for a family.
// Params: f family; identifier optional instance name, checked with CheckIdentifier by callers.
// Returns: absolute directory path.
func (l Layout) Dir(f *Family, identifier string) string {
	dir := f.plugin()
	if f.Keyed && identifier != "" {
		dir += "-" + f.codec().Encode(identifier)
	}
	return filepath.Join(l.Root(), dir)
}

// CheckIdentifier rejects identifiers whose encoded form is not a single directory-name fragment.
// Params: f family; identifier instance name (ignored for unkeyed families).
// Returns: RequestError for separators, NUL bytes or dot segments.
func (l Layout) CheckIdentifier(f *Family, identifier string) error {
	if !f.Keyed || identifier == "" {
		return nil
	}
	suffix := f.codec().Encode(identifier)
	if suffix == "." || suffix == ".." ||
		strings.ContainsRune(suffix, '/') ||
		strings.ContainsRune(suffix, filepath.Separator) ||
		strings.ContainsRune(suffix, 0) {
		return &RequestError{Family: f.Name, Reason: fmt.Sprintf("invalid identifier %q", identifier)}
	}
	return nil
}

// File returns the archive path for one source.
// Params: f family; source descriptor; identifier optional instance name.
// Returns: absolute rrd path.
func (l Layout) File(f *Family, source Source, identifier string) string {
	return filepath.Join(l.Dir(f, identifier), source.Type+".rrd")
}

// Files returns distinct archive paths in source order.
// Params: f family; identifier optional instance name.
// Returns: rrd paths.
func (l Layout) Files(f *Family, identifier string) []string {
	out := make([]string, 0, len(f.Sources))
	seen := make(map[string]struct{}, len(f.Sources))
	for _, source := range f.Sources {
		path := l.File(f, source, identifier)
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}

// Rel returns path relative to the storage root.
// Params: path absolute archive path.
// Returns: relative path, or path unchanged when it lies outside the root.
func (l Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// Suffix extracts the encoded identifier from an instance directory name.
// Params: f family; dirName base name of a directory under the root.
// Returns: decoded identifier and false when dirName does not belong to f.
func (l Layout) Suffix(f *Family, dirName string) (string, bool) {
	prefix := f.plugin() + "-"
	if !strings.HasPrefix(dirName, prefix) || len(dirName) == len(prefix) {
		return "", false
	}
	return f.codec().Decode(dirName[len(prefix):]), true
}

// HasData reports whether any archive exists for an unkeyed family.
// Params: f family.
// Returns: true for keyed/sourceless families or when any archive exists.
func (l Layout) HasData(f *Family) bool {
	if f.Identifiers != nil || f.Keyed || len(f.Sources) == 0 {
		return true
	}
	for _, source := range f.Sources {
		if _, err := os.Stat(l.File(f, source, "")); err == nil {
			return true
		}
	}
	return false
}

// Root returns the storage root, defaulting to DefaultBasePath.
func (l Layout) Root() string {
	if l.Base == "" {
		return DefaultBasePath
	}
	return l.Base
}

// Catalog is the name -> family registry.
// It is populated once at startup and read concurrently afterwards without locking.
type Catalog struct {
	families map[string]*Family
	order    []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{families: make(map[string]*Family)}
}

// Register validates and stores a family under its lowercase name, replacing an earlier entry of the same name.
// Params: f family definition (copied).
// Returns: ConfigurationError when the definition is invalid.
func (c *Catalog) Register(f Family) error {
	f.Name = strings.ToLower(strings.TrimSpace(f.Name))
	if err := f.validate(); err != nil {
		return err
	}

	f.Sources = append([]Source(nil), f.Sources...)
	if _, exists := c.families[f.Name]; !exists {
		c.order = append(c.order, f.Name)
	}
	c.families[f.Name] = &f
	return nil
}

// Lookup returns the family registered under name.
// Params: name case-insensitive family name.
// Returns: family or UnknownFamilyError.
func (c *Catalog) Lookup(name string) (*Family, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	family, ok := c.families[key]
	if !ok {
		return nil, &UnknownFamilyError{Name: name}
	}
	return family, nil
}

// Families returns families in registration order.
func (c *Catalog) Families() []*Family {
	out := make([]*Family, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.families[name])
	}
	return out
}

// Len returns the number of registered families.
func (c *Catalog) Len() int {
	return len(c.order)
}

// ListIdentifiers returns filtered, de-duplicated identifiers in codec order.
// Params: ctx for cancellation; f family; allow optional filter (nil keeps all).
// Returns: nil for families without an identifier source.
func ListIdentifiers(ctx context.Context, f *Family, allow func(string) bool) ([]string, error) {
	if f.Identifiers == nil {
		return nil, nil
	}
	raw, err := f.Identifiers.Identifiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s identifiers: %w", f.Name, err)
	}

	codec := f.codec()
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		if id == "" {
			continue
		}
		if allow != nil && !allow(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return codec.SortKey(out[i]).Less(codec.SortKey(out[j]))
	})
	return out, nil
}

// Describe returns the listing view of f.
// Params: ctx for cancellation; f family; allow optional identifier filter.
// Returns: description or identifier listing error.
func Describe(ctx context.Context, f *Family, allow func(string) bool) (Description, error) {
	ids, err := ListIdentifiers(ctx, f, allow)
	if err != nil {
		return Description{}, err
	}
	return Description{
		Name:             f.Name,
		Title:            f.Title,
		VerticalLabel:    f.VerticalLabel,
		Identifiers:      ids,
		Stacked:          f.Stacked,
		StackedShowTotal: f.StackedShowTotal,
	}, nil
}
