package queue

// Options holds per-item settings for Enqueue.
type Options struct {
	// Group overrides the extension group. Empty means the owning job's.
	Group string
	// ID sets the item id instead of generating one.
	ID string
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// Group files the item under an extension group other than the job's.
func Group(name string) Option {
	return optionFunc(func(o *Options) {
		o.Group = name
	})
}

// WithID sets the item id, for producers that track items themselves.
func WithID(id string) Option {
	return optionFunc(func(o *Options) {
		o.ID = id
	})
}
