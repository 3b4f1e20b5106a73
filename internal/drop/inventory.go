package drop

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// File is a plain file directly under the storage root.
type File struct {
	Name      string
	Size      int64
	CreatedAt time.Time
}

// Folder is a top-level directory with every file beneath it flattened to a
// '/'-separated path relative to the folder, sorted lexically.
type Folder struct {
	Name      string
	CreatedAt time.Time
	Files     []string
}

// Bucket groups the entries created on one calendar day.
type Bucket struct {
	Label   string
	Folders []Folder // listing order
	Files   []File   // sorted by name
}

// Inventory is a snapshot of the storage root grouped by date bucket.
type Inventory struct {
	Buckets []Bucket
}

// Bucket returns the bucket with the given label, or nil.
func (inv *Inventory) Bucket(label string) *Bucket {
	for i := range inv.Buckets {
		if inv.Buckets[i].Label == label {
			return &inv.Buckets[i]
		}
	}
	return nil
}

// Labels returns the bucket labels in display order.
func (inv *Inventory) Labels() []string {
	labels := make([]string, len(inv.Buckets))
	for i, b := range inv.Buckets {
		labels[i] = b.Label
	}
	return labels
}

// Empty reports whether the inventory holds no entries.
func (inv *Inventory) Empty() bool {
	return len(inv.Buckets) == 0
}

// BuildInventory scans the storage root and groups its children by creation
// date relative to now. Folders are expanded into recursive file listings.
//
// Entries deleted between the listing and the folder walk are skipped rather
// than failing the scan. A missing root yields an empty inventory.
func BuildInventory(storage Storage, now time.Time, logger Logger) (*Inventory, error) {
	children, err := storage.List()
	if err != nil {
		if IsNotFound(err) {
			return &Inventory{}, nil
		}
		return nil, ioError("listing", "storage root", err)
	}

	byLabel := make(map[string]*Bucket)
	var labels []string
	bucketFor := func(label string) *Bucket {
		b, ok := byLabel[label]
		if !ok {
			b = &Bucket{Label: label}
			byLabel[label] = b
			labels = append(labels, label)
		}
		return b
	}

	for _, child := range children {
		if child.IsDir {
			files, err := folderFiles(storage, child.Name)
			if err != nil {
				if IsNotFound(err) {
					logger.Debug("entry vanished during scan", "name", child.Name)
					continue
				}
				return nil, err
			}
			b := bucketFor(Classify(child.CreatedAt, now))
			b.Folders = append(b.Folders, Folder{
				Name:      child.Name,
				CreatedAt: child.CreatedAt,
				Files:     files,
			})
			continue
		}

		b := bucketFor(Classify(child.CreatedAt, now))
		b.Files = append(b.Files, File{
			Name:      child.Name,
			Size:      child.Size,
			CreatedAt: child.CreatedAt,
		})
	}

	SortLabels(labels)
	inv := &Inventory{Buckets: make([]Bucket, 0, len(labels))}
	for _, label := range labels {
		b := byLabel[label]
		sort.Slice(b.Files, func(i, j int) bool { return b.Files[i].Name < b.Files[j].Name })
		inv.Buckets = append(inv.Buckets, *b)
	}
	return inv, nil
}

// folderFiles returns the sorted relative paths of every file under name.
func folderFiles(storage Storage, name string) ([]string, error) {
	files := []string{}
	err := storage.WalkFiles(name, func(rel string, _ EntryInfo) error {
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, ioError("walking", name, err)
	}
	sort.Strings(files)
	return files, nil
}

// String renders a short human summary, used by the CLI.
func (inv *Inventory) String() string {
	var sb strings.Builder
	for _, b := range inv.Buckets {
		fmt.Fprintf(&sb, "%s: %d folder(s), %d file(s)\n", b.Label, len(b.Folders), len(b.Files))
	}
	return sb.String()
}
