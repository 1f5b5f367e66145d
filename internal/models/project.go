package models

import "maps"

// FileByID returns the file with the given id, or nil.
func (p *Project) FileByID(id string) *File {
	for i := range p.Files {
		if p.Files[i].ID == id {
			return &p.Files[i]
		}
	}
	return nil
}

// FileByName returns the first file with the given name, or nil.
func (p *Project) FileByName(name string) *File {
	for i := range p.Files {
		if p.Files[i].Name == name {
			return &p.Files[i]
		}
	}
	return nil
}

// SelectedFile resolves SelectedFileID. A dangling reference yields nil.
func (p *Project) SelectedFile() *File {
	if p.SelectedFileID == "" {
		return nil
	}
	return p.FileByID(p.SelectedFileID)
}

// DropDanglingSelection clears SelectedFileID when it does not reference a file.
func (p *Project) DropDanglingSelection() {
	if p.SelectedFile() == nil {
		p.SelectedFileID = ""
	}
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	if p.Files != nil {
		c.Files = make([]File, len(p.Files))
		copy(c.Files, p.Files)
	}
	if p.Dependencies != nil {
		c.Dependencies = maps.Clone(p.Dependencies)
	}
	return &c
}

// Apply copies the fields present in patch onto the project.
func (p *Project) Apply(patch ProjectPatch) {
	if patch.Files != nil {
		p.Files = make([]File, len(patch.Files))
		copy(p.Files, patch.Files)
	}
	if patch.Dependencies != nil {
		p.Dependencies = maps.Clone(patch.Dependencies)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.SelectedFileID != nil {
		p.SelectedFileID = *patch.SelectedFileID
	}
}

// FileContents maps every file id to its content.
func FileContents(files []File) map[string]string {
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.ID] = f.Content
	}
	return out
}
