package units

const (
	KB  = 1000.0
	MB  = 1000.0 * KB
	KiB = 1024
	MiB = 1024 * KiB
)
