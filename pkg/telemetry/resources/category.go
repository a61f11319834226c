package resources

// Category is a coarse usage bucket used as a metric label.
type Category string

const (
	CategoryLow      Category = "low"
	CategoryMedium   Category = "medium"
	CategoryHigh     Category = "high"
	CategoryVeryHigh Category = "very_high"
)

// Resource names used as the "resource" metric label.
const (
	ResourceMemory   = "memory"
	ResourceCPU      = "cpu"
	ResourceDuration = "duration"
)

const bytesPerMB = 1024 * 1024

// Categories holds the classification of one Usage.
type Categories struct {
	Memory   Category
	CPU      Category
	Duration Category
}

// Each calls fn for every resource in a fixed order.
func (c Categories) Each(fn func(resource string, category Category)) {
	fn(ResourceMemory, c.Memory)
	fn(ResourceCPU, c.CPU)
	fn(ResourceDuration, c.Duration)
}

// CategorizeMemory buckets a heap delta. Thresholds are in megabytes:
// <1 low, <10 medium, <50 high, otherwise very_high. Negative deltas are low.
func CategorizeMemory(deltaBytes int64) Category {
	return bucket(float64(deltaBytes)/bytesPerMB, 1, 10, 50)
}

// CategorizeCPU buckets CPU time in milliseconds: <10, <50, <100.
func CategorizeCPU(ms float64) Category {
	return bucket(ms, 10, 50, 100)
}

// CategorizeDuration buckets wall time in milliseconds: <100, <500, <1000.
func CategorizeDuration(ms float64) Category {
	return bucket(ms, 100, 500, 1000)
}

func bucket(v, low, medium, high float64) Category {
	switch {
	case v < low:
		return CategoryLow
	case v < medium:
		return CategoryMedium
	case v < high:
		return CategoryHigh
	default:
		return CategoryVeryHigh
	}
}
