// Package cleanup finds and deletes uploaded editor images that no content
// references anymore. Content references an image by embedding a
// data-image-id="<id>" marker inside a long-text attribute, so reachability
// is recomputed on every run by scanning all registered content tables.
package cleanup

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"

	"editorimages/internal/models"
)

// markerPattern matches image references embedded in editor output.
var markerPattern = regexp.MustCompile(`data-image-id="(\d+)"`)

// ImageStore enumerates uploaded images and deletes them. Record and file
// deletion are separate because they fail independently.
type ImageStore interface {
	ListImages(ctx context.Context) ([]models.EditorImage, error)
	DeleteImage(ctx context.Context, id int64) error
	DeleteImageFile(ctx context.Context, img models.EditorImage) error
}

// Attribute is one declared attribute of a content entity type. Only text
// attributes are scanned.
type Attribute struct {
	Name string
	Text bool
}

// EntityType is one registered content-bearing entity type.
type EntityType interface {
	Name() string
	Attributes() []Attribute

	// TextValues returns the named attribute's value for every instance.
	// Failures reading individual instances are returned alongside the
	// values that could be read; one bad record never hides the rest.
	TextValues(ctx context.Context, attr string) (values []string, readErrs []error)
}

// Catalog enumerates the entity types registered by the host application.
type Catalog interface {
	EntityTypes(ctx context.Context) ([]EntityType, error)
}

// Report is the outcome of one scan.
type Report struct {
	TotalImages   int
	ModelsChecked int
	UsedCount     int
	UnusedCount   int
	DryRun        bool
	DeletedIDs    []int64
	Warnings      []string
}

// Scanner computes the set of images with zero references across every
// registered entity type and deletes it (or reports it under dry run).
// The scanner owns no registry; both collaborators are injected.
type Scanner struct {
	Images  ImageStore
	Catalog Catalog
	Out     io.Writer // operator-facing progress and result lines
}

// Scan runs one full pass. Individual extraction or deletion failures are
// collected as warnings; the only errors returned are an unreachable image
// store or catalog.
//
// The image list is a snapshot: a reference written between the scan and
// the delete step is not seen. Accepted risk for a maintenance job that
// runs while content editing is quiet.
func (s *Scanner) Scan(ctx context.Context, dryRun bool) (*Report, error) {
	const op = "cleanup.Scan"

	out := s.Out
	if out == nil {
		out = io.Discard
	}
	report := &Report{DryRun: dryRun}

	fmt.Fprintln(out, "Searching for content tables with text columns...")

	images, err := s.Images.ListImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	report.TotalImages = len(images)
	fmt.Fprintf(out, "Found %d uploaded images\n", len(images))

	types, err := s.Catalog.EntityTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	used := make(map[int64]bool)
	for _, et := range types {
		var textAttrs []string
		for _, attr := range et.Attributes() {
			if attr.Text {
				textAttrs = append(textAttrs, attr.Name)
			}
		}
		// Nothing scannable here; skipping cannot hide a reference.
		if len(textAttrs) == 0 {
			continue
		}

		report.ModelsChecked++
		fmt.Fprintf(out, "Checking %s...\n", et.Name())

		for _, attr := range textAttrs {
			values, readErrs := et.TextValues(ctx, attr)
			for _, readErr := range readErrs {
				warn := fmt.Sprintf("error checking %s.%s: %v", et.Name(), attr, readErr)
				report.Warnings = append(report.Warnings, warn)
				fmt.Fprintf(out, "WARNING: %s\n", warn)
			}
			for _, value := range values {
				for _, match := range markerPattern.FindAllStringSubmatch(value, -1) {
					id, err := strconv.ParseInt(match[1], 10, 64)
					if err != nil {
						continue
					}
					used[id] = true
				}
			}
		}
	}

	report.UsedCount = len(used)
	fmt.Fprintf(out, "Checked %d content tables\n", report.ModelsChecked)
	fmt.Fprintf(out, "Found %d images in use\n", report.UsedCount)

	var unused []models.EditorImage
	for _, img := range images {
		if !used[img.ID] {
			unused = append(unused, img)
		}
	}
	sort.Slice(unused, func(i, j int) bool { return unused[i].ID < unused[j].ID })
	report.UnusedCount = len(unused)

	if len(unused) == 0 {
		fmt.Fprintln(out, "No unused images found!")
		return report, nil
	}

	fmt.Fprintf(out, "Found %d unused images\n", len(unused))

	if dryRun {
		fmt.Fprintln(out, "DRY RUN - no images will be deleted")
		for _, img := range unused {
			fmt.Fprintf(out, "  Would delete: %s (ID: %d)\n", img.URL, img.ID)
		}
		return report, nil
	}

	for _, img := range unused {
		fmt.Fprintf(out, "Deleting: %s (ID: %d)\n", img.URL, img.ID)
		if err := s.Images.DeleteImageFile(ctx, img); err != nil {
			warn := fmt.Sprintf("could not delete file for image %d: %v", img.ID, err)
			report.Warnings = append(report.Warnings, warn)
			fmt.Fprintf(out, "WARNING: %s\n", warn)
		}
		// The record still goes even if the file did not: a dangling file
		// beats a dangling record that keeps resurrecting in listings.
		if err := s.Images.DeleteImage(ctx, img.ID); err != nil {
			warn := fmt.Sprintf("could not delete record for image %d: %v", img.ID, err)
			report.Warnings = append(report.Warnings, warn)
			fmt.Fprintf(out, "WARNING: %s\n", warn)
			continue
		}
		report.DeletedIDs = append(report.DeletedIDs, img.ID)
	}

	fmt.Fprintf(out, "Successfully deleted %d unused images\n", len(report.DeletedIDs))
	return report, nil
}
