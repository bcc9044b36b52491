package scan

// Category is the coarse kind of a recovered file, resolved once from its
// extension when the file is scanned.
type Category int

const (
	Unclassified Category = iota
	Image
	Video
	Document
)

func (c Category) String() string {
	switch c {
	case Image:
		return "image"
	case Video:
		return "video"
	case Document:
		return "document"
	default:
		return "unclassified"
	}
}

var categories = map[string]Category{
	// Images
	".jpg":  Image,
	".jpeg": Image,
	".png":  Image,
	".webp": Image,
	".bmp":  Image,
	".gif":  Image,
	".heic": Image,
	".heif": Image,
	".tif":  Image,
	".tiff": Image,

	// Videos
	".mp4": Video,
	".mov": Video,
	".mkv": Video,
	".avi": Video,
	".3gp": Video,
	".mts": Video,
	".m4v": Video,
	".wmv": Video,

	// Docs
	".pdf":  Document,
	".docx": Document,
	".pptx": Document,
}

// Classify maps a lower-cased extension (with its leading dot) to a Category.
func Classify(ext string) Category {
	return categories[ext]
}
