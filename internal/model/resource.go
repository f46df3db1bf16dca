package model

import "time"

// Category classifies a resource by what kind of file it is.
// The category decides which assets/ subdirectory the resource
// is stored under.
type Category string

// Resource categories. CategoryHTML is special: HTML pages preserve
// the URL path structure instead of landing in an assets/ subdirectory.
const (
	CategoryHTML  Category = "html"
	CategoryCSS   Category = "css"
	CategoryJS    Category = "js"
	CategoryImage Category = "image"
	CategoryFont  Category = "font"
	CategoryOther Category = "other"
)

// Subdir returns the assets/ subdirectory for this category.
// CategoryHTML has no subdirectory; pages live under the output root.
func (c Category) Subdir() string {
	switch c {
	case CategoryCSS:
		return "assets/css"
	case CategoryJS:
		return "assets/js"
	case CategoryImage:
		return "assets/images"
	case CategoryFont:
		return "assets/fonts"
	case CategoryHTML:
		return ""
	default:
		return "assets/other"
	}
}

// Status tracks the download state of a resource.
type Status string

// Download states. A resource moves pending -> succeeded or
// pending -> failed exactly once per attempt; a failed resource may be
// retried on the next reference.
const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Resource maps one source URL to its local storage location.
// There is at most one Resource per distinct URL for the lifetime of a
// mirror run; the assets.Allocator owns the table and hands out
// pointers, so status updates are visible to every holder.
type Resource struct {
	// URL is the absolute source URL this resource was fetched from.
	URL string `json:"url"`

	// LocalPath is the file path relative to the output root,
	// always with forward slashes (web form).
	LocalPath string `json:"local_path"`

	// Category is the resource classification used for path allocation.
	Category Category `json:"category"`

	// Status is the current download state.
	Status Status `json:"status"`
}

// PageResult records the outcome of mirroring a single page.
type PageResult struct {
	// URL is the normalized page URL.
	URL string `json:"url"`

	// LocalPath is the page's file path relative to the output root.
	LocalPath string `json:"local_path"`

	// Title is the page title from the <title> tag, if any.
	Title string `json:"title,omitempty"`

	// Links are the normalized same-domain links discovered on the page.
	Links []string `json:"links,omitempty"`

	// FetchedAt is when the page was retrieved.
	FetchedAt time.Time `json:"fetched_at"`
}

// MirrorStats summarizes a completed mirror run.
type MirrorStats struct {
	// BaseURL is the start URL of the run.
	BaseURL string `json:"base_url"`

	// OutputDir is the directory the mirror was written to.
	OutputDir string `json:"output_dir"`

	// PagesVisited is the number of pages processed.
	PagesVisited int `json:"pages_visited"`

	// ResourcesTotal is the number of distinct resources allocated.
	ResourcesTotal int `json:"resources_total"`

	// ResourcesFailed is the number of resources whose download failed.
	ResourcesFailed int `json:"resources_failed"`

	// CSSFiles and JSFiles count allocated stylesheets and scripts.
	CSSFiles int `json:"css_files"`
	JSFiles  int `json:"js_files"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`

	// Pages lists every mirrored page in visit order.
	Pages []PageResult `json:"pages,omitempty"`
}
