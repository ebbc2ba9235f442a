package pagelock

// Config bounds the resources a Table allocates, per spec.md §5 "Resource
// bounds". Build one with DefaultConfig and With* options, in the style of
// vanadium-go.lib/cmdline2's option constructors; NewTable replaces a
// Config whose MaxProcs is not positive with DefaultConfig().
type Config struct {
	// MaxProcs is the fixed number of worker slots (spec.md §9: "a fixed
	// max_procs known at init; growing it at runtime is out of scope").
	MaxProcs int

	// MaxLockedPages bounds a single worker's locked-page registry
	// (spec.md §5: "at most 8 simultaneously held pages").
	MaxLockedPages int

	// MaxTreeDepth sizes the in-progress-split registry to twice the
	// maximum tree depth (spec.md §3, §5).
	MaxTreeDepth int

	// MaxSplitItems bounds GetWaitersWithTuples' result slice
	// (BTREE_PAGE_MAX_SPLIT_ITEMS in the source).
	MaxSplitItems int
}

// Option mutates a Config being built.
type Option func(*Config)

// WithMaxProcs overrides the worker-slot capacity.
func WithMaxProcs(n int) Option { return func(c *Config) { c.MaxProcs = n } }

// WithMaxLockedPages overrides the per-worker locked-page registry depth.
func WithMaxLockedPages(n int) Option { return func(c *Config) { c.MaxLockedPages = n } }

// WithMaxTreeDepth overrides the tree-depth bound used to size the
// in-progress-split registry (sized to 2x this value).
func WithMaxTreeDepth(n int) Option { return func(c *Config) { c.MaxTreeDepth = n } }

// WithMaxSplitItems overrides the split-item cap.
func WithMaxSplitItems(n int) Option { return func(c *Config) { c.MaxSplitItems = n } }

// DefaultConfig returns sane defaults matching the source's constants
// (MAX_PAGES_PER_PROCESS=8, ORIOLEDB_MAX_DEPTH taken as 32).
func DefaultConfig(opts ...Option) Config {
	c := Config{
		MaxProcs:       256,
		MaxLockedPages: 8,
		MaxTreeDepth:   32,
		MaxSplitItems:  32,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
