package doc

// Version identifies the extraction rules. Cached documents built under a
// different version are discarded.
const Version = "svdoc-doc-1"

// File records one documented source file of a Library.
type File struct {
	Path       string  `json:"path"`
	Library    string  `json:"library,omitempty"`
	ThirdParty bool    `json:"third_party,omitempty"`
	Stats      Stats   `json:"stats"`
	Data       Context `json:"-"`
}

// Library is the documentation of a set of files. Data holds every file's
// root context merged in the order the files were added.
type Library struct {
	Title string  `json:"title,omitempty"`
	Files []File  `json:"files"`
	Data  Context `json:"data"`
}

// NewLibrary returns an empty library.
func NewLibrary(title string) *Library {
	return &Library{Title: title, Files: []File{}}
}

// Add merges the root context of d into the library.
func (l *Library) Add(d *Doc, library string, thirdParty bool) {
	l.Files = append(l.Files, File{
		Path:       d.Path,
		Library:    library,
		ThirdParty: thirdParty,
		Stats:      d.Data.Count(),
		Data:       d.Data,
	})
	l.Data.Merge(d.Data)
}

// Stats counts every item in the library.
func (l *Library) Stats() Stats {
	return l.Data.Count()
}
