package drop

import (
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"
)

// Mode selects how an upload is laid out under the storage root.
type Mode int

const (
	// ModeFiles is a flat set of files; directory components are discarded.
	ModeFiles Mode = iota
	// ModeFolder is a folder tree; each file name carries its relative path.
	ModeFolder
	// ModeText is pasted text saved as a .txt file.
	ModeText
)

func (m Mode) String() string {
	switch m {
	case ModeFiles:
		return "files"
	case ModeFolder:
		return "folder"
	case ModeText:
		return "text"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const (
	multipleFilesPrefix   = "Multiple_Files_"
	multipleFoldersPrefix = "Multiple_Folders_"
	defaultFolderRoot     = "upload"
	uniqueSuffixLayout    = "20060102_150405"
	textExt               = ".txt"
)

// UploadFile is one incoming payload with its client-supplied name.
type UploadFile struct {
	Name string
	Body io.Reader
}

// Upload describes a single upload request.
type Upload struct {
	Mode  Mode
	Files []UploadFile

	// Title and Text are used by ModeText only.
	Title string
	Text  string
}

// Placement is a destination path, relative to the storage root, and the
// bytes to write there.
type Placement struct {
	RelPath string
	Body    io.Reader
}

// Plan is the layout decided for an upload. Container, when set, is the
// synthesized top-level folder that must exist even if every file is skipped.
type Plan struct {
	Container string
	Files     []Placement
}

// Paths returns the destination paths of the plan in order.
func (p *Plan) Paths() []string {
	out := make([]string, len(p.Files))
	for i, f := range p.Files {
		out[i] = f.RelPath
	}
	return out
}

// Namer computes collision-free destinations for uploads.
//
// Container names get a timestamp suffix when taken; text files get an
// incrementing counter. Both checks run against the storage root without a
// lock, so two uploads racing on the same name within one second can still
// share a container. That is accepted: it never fails the upload.
type Namer struct {
	storage Storage
	clock   Clock
}

// NewNamer creates a Namer checking names against storage.
func NewNamer(storage Storage, clock Clock) *Namer {
	return &Namer{storage: storage, clock: clock}
}

// Place decides where every file of u lands. It performs existence checks but
// writes nothing.
func (n *Namer) Place(u Upload) (*Plan, error) {
	switch u.Mode {
	case ModeFiles:
		return n.placeFiles(u.Files)
	case ModeFolder:
		return n.placeFolder(u.Files)
	case ModeText:
		return n.placeText(u.Title, u.Text)
	default:
		return nil, fmt.Errorf("unknown upload mode %s", u.Mode)
	}
}

func (n *Namer) placeFiles(files []UploadFile) (*Plan, error) {
	plan := &Plan{}
	if len(files) == 0 {
		return plan, nil
	}

	if len(files) == 1 {
		if base := BaseName(files[0].Name); base != "" {
			plan.Files = append(plan.Files, Placement{RelPath: base, Body: files[0].Body})
		}
		return plan, nil
	}

	first := BaseName(files[0].Name)
	first = strings.TrimSuffix(first, path.Ext(first))
	container, err := n.uniqueFolderName(multipleFilesPrefix + first)
	if err != nil {
		return nil, err
	}
	plan.Container = container

	for _, f := range files {
		base := BaseName(f.Name)
		if base == "" {
			continue
		}
		plan.Files = append(plan.Files, Placement{RelPath: path.Join(container, base), Body: f.Body})
	}
	return plan, nil
}

func (n *Namer) placeFolder(files []UploadFile) (*Plan, error) {
	plan := &Plan{}
	if len(files) == 0 {
		return plan, nil
	}

	var roots []string
	seen := make(map[string]bool)
	for _, f := range files {
		if f.Name == "" {
			continue
		}
		root, nested := TopSegment(f.Name)
		if nested && root != "" && !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}

	container := ""
	if len(roots) != 1 {
		first := defaultFolderRoot
		if len(roots) > 0 {
			first = roots[0]
		}
		name, err := n.uniqueFolderName(multipleFoldersPrefix + first)
		if err != nil {
			return nil, err
		}
		container = name
		plan.Container = container
	}

	for _, f := range files {
		if f.Name == "" {
			continue
		}
		rel, err := CleanRelPath(f.Name)
		if err != nil {
			return nil, fmt.Errorf("placing %q: %w", f.Name, err)
		}
		if container != "" {
			rel = path.Join(container, rel)
		}
		plan.Files = append(plan.Files, Placement{RelPath: rel, Body: f.Body})
	}
	return plan, nil
}

func (n *Namer) placeText(title, text string) (*Plan, error) {
	plan := &Plan{}
	if text == "" {
		return plan, nil
	}

	base := SanitizeTitle(title)
	if base == "" {
		base = "text_" + n.clock.Now().Format(uniqueSuffixLayout)
	}

	name := base + textExt
	for counter := 1; ; counter++ {
		exists, err := n.storage.Exists(name)
		if err != nil {
			return nil, ioError("checking", name, err)
		}
		if !exists {
			break
		}
		name = fmt.Sprintf("%s_%d%s", base, counter, textExt)
	}

	plan.Files = append(plan.Files, Placement{RelPath: name, Body: strings.NewReader(text)})
	return plan, nil
}

// uniqueFolderName returns base, or base with a timestamp suffix when base is
// already taken.
func (n *Namer) uniqueFolderName(base string) (string, error) {
	exists, err := n.storage.Exists(base)
	if err != nil {
		return "", ioError("checking", base, err)
	}
	if !exists {
		return base, nil
	}
	return base + "_" + n.clock.Now().Format(uniqueSuffixLayout), nil
}

// SanitizeTitle keeps letters, digits, spaces, '_' and '-', trims the result
// and turns the remaining spaces into underscores.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}
