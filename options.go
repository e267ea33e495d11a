package car

// options holds the configured options after applying a number of Option
// funcs.
type options struct {
	BufferSize int
}

// Option describes an option which affects behavior when opening a
// datastore.
type Option func(*options)

// BufferSize sets the sliding-window size the file-indexed reader uses
// while scanning a file to build its index. Defaults to 64 KiB; values
// below 1 are treated as the default.
func BufferSize(n int) Option {
	return func(o *options) {
		o.BufferSize = n
	}
}

// applyOptions applies given opts and returns the resulting options.
func applyOptions(opt ...Option) options {
	opts := options{
		BufferSize: 0, // 0 means "use the package default"
	}
	for _, o := range opt {
		o(&opts)
	}
	return opts
}
