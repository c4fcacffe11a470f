package server

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype"
	"golang.org/x/image/font"

	"editorimages/internal/models"
)

const defaultThumbnailSize = 300

// ProcessImage generates the thumbnail for one queued upload. Invoked by
// the Kafka consumer with the message payload, which is the image id.
func ProcessImage(ctx context.Context, db Store, cfg *models.Config, idStr string) error {
	const op = "server.ProcessImage"

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	img, err := db.GetImage(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	if img.Status != models.StatusPending {
		return nil // Already processed or error
	}

	img.Status = models.StatusProcessing
	if err := db.UpdateImage(ctx, img); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	src, err := imaging.Open(img.FilePath)
	if err != nil {
		img.Status = models.StatusError
		db.UpdateImage(ctx, img)
		return fmt.Errorf("%s: %v", op, err)
	}

	size := cfg.ThumbnailSize
	if size == 0 {
		size = defaultThumbnailSize
	}
	thumb := imaging.Thumbnail(src, size, size, imaging.Lanczos)

	if cfg.WatermarkText != "" && cfg.FontPath != "" {
		if err := drawWatermark(thumb, cfg.WatermarkText, cfg.FontPath); err != nil {
			img.Status = models.StatusError
			db.UpdateImage(ctx, img)
			return fmt.Errorf("%s: %v", op, err)
		}
	}

	thumbPath := filepath.Join(cfg.StoragePath, uploadPrefix, "thumbs", fmt.Sprintf("%d_thumb.jpg", id))
	if err := os.MkdirAll(filepath.Dir(thumbPath), 0755); err != nil {
		img.Status = models.StatusError
		db.UpdateImage(ctx, img)
		return fmt.Errorf("%s: %v", op, err)
	}
	if err := imaging.Save(thumb, thumbPath); err != nil {
		img.Status = models.StatusError
		db.UpdateImage(ctx, img)
		return fmt.Errorf("%s: %v", op, err)
	}

	img.ThumbnailPath = thumbPath
	img.Status = models.StatusDone
	if err := db.UpdateImage(ctx, img); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	return nil
}

// drawWatermark renders text in the bottom-left corner of dst.
func drawWatermark(dst *image.NRGBA, text, fontPath string) error {
	const op = "server.drawWatermark"

	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	parsed, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	fc := freetype.NewContext()
	fc.SetDPI(72)
	fc.SetFont(parsed)
	fc.SetFontSize(14)
	fc.SetClip(dst.Bounds())
	fc.SetDst(dst)
	fc.SetSrc(image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 200}))
	fc.SetHinting(font.HintingFull)

	if _, err := fc.DrawString(text, freetype.Pt(8, dst.Bounds().Dy()-8)); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}
