package export

import (
	"path"
	"strings"

	"github.com/rs/zerolog"

	"gallery/internal/domain"
)

// Stage applies the optional per-asset transforms: watermark first, then
// the output profile, so size budgeting accounts for the rendered overlay.
// Every failure degrades to the best bytes produced so far; a broken
// enhancement never fails the asset.
type Stage struct {
	transformer domain.AssetTransformer
	logger      zerolog.Logger
}

// NewStage builds a transform stage around the given transformer.
func NewStage(transformer domain.AssetTransformer, logger zerolog.Logger) *Stage {
	return &Stage{transformer: transformer, logger: logger}
}

// Apply runs the transform chain for one fetched asset and returns the
// final bytes and archive entry name. It never fails.
func (s *Stage) Apply(data []byte, filename string, wm *domain.WatermarkSpec, profile *domain.OutputProfile) ([]byte, string) {
	if wm != nil && s.transformer != nil {
		res, err := s.transformer.ApplyWatermark(data, *wm)
		if err != nil {
			s.logger.Warn().Err(err).Str("filename", filename).Msg("watermark failed, delivering original")
		} else {
			data = res.Data
			filename = withFormatExt(filename, res.Format, false)
		}
	}

	if profile != nil && s.transformer != nil {
		res, err := s.transformer.ResizeToProfile(data, *profile)
		if err != nil {
			s.logger.Warn().Err(err).Str("filename", filename).Str("profile", profile.Name).Msg("re-export failed, delivering previous bytes")
		} else {
			data = res.Data
			filename = withFormatExt(filename, res.Format, true)
		}
	}

	return data, filename
}

// withFormatExt rewrites the filename extension to match the produced
// format. When force is false the name is only touched if the current
// extension does not already denote the format.
func withFormatExt(filename, format string, force bool) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return filename
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if !force && extMatchesFormat(ext, format) {
		return filename
	}
	base := strings.TrimSuffix(filename, path.Ext(filename))
	return base + "." + preferredExt(format)
}

func extMatchesFormat(ext, format string) bool {
	if ext == format {
		return true
	}
	return (ext == "jpg" && format == "jpeg") || (ext == "jpeg" && format == "jpg") ||
		(ext == "tif" && format == "tiff") || (ext == "tiff" && format == "tif")
}

func preferredExt(format string) string {
	switch format {
	case "jpeg":
		return "jpg"
	case "tiff":
		return "tif"
	default:
		return format
	}
}
