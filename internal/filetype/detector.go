package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	IsPDF       bool
	Supported   bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename.
// The pipeline only consumes PDF; everything else is reported unsupported
// with a descriptive reason.
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", filePath).Msg("detected file type")

	switch {
	case info.MIMEType == "application/pdf":
		info.IsPDF = true
		info.Supported = true
		info.Description = "PDF document"

	case strings.Contains(info.MIMEType, "officedocument"),
		info.MIMEType == "application/msword",
		info.MIMEType == "application/vnd.ms-excel",
		info.MIMEType == "application/vnd.ms-powerpoint":
		info.Description = "Office document (convert to PDF first)"

	case strings.HasPrefix(info.MIMEType, "image/"):
		info.Description = "Image file (wrap in a PDF first)"

	default:
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}

	return info, nil
}

// IsPDF reports whether the file is a real PDF by content.
func (d *Detector) IsPDF(filePath string) (bool, error) {
	info, err := d.Detect(filePath)
	if err != nil {
		return false, err
	}
	return info.IsPDF, nil
}
