package domain

// MorphemeForm is one entry of a parser response for a group's text.
//
// Compound marks a form decomposed into parts that share the surface span.
// Parsed is false for text the parser could not resolve to a dictionary form,
// such as punctuation. Such forms are never matched against vocabulary.
type MorphemeForm struct {
	SurfaceForm   string   `json:"surface_form"`
	SeparatedForm []string `json:"separated_form"`
	BaseForm      []string `json:"base_form"`
	Compound      bool     `json:"compound"`
	Parsed        bool     `json:"parsed"`
}

// SimpleForm builds a non-compound form with a single base form.
func SimpleForm(surface, base string) MorphemeForm {
	return MorphemeForm{
		SurfaceForm:   surface,
		SeparatedForm: []string{surface},
		BaseForm:      []string{base},
		Parsed:        true,
	}
}

// CompoundForm builds a compound form. parts and bases are positional.
func CompoundForm(surface string, parts, bases []string) MorphemeForm {
	return MorphemeForm{
		SurfaceForm:   surface,
		SeparatedForm: parts,
		BaseForm:      bases,
		Compound:      true,
		Parsed:        true,
	}
}

// UnparsedForm builds a form with a null base.
func UnparsedForm(surface string) MorphemeForm {
	return MorphemeForm{SurfaceForm: surface, SeparatedForm: []string{surface}}
}

// Base returns the base form of part i, falling back to the part itself.
func (f MorphemeForm) Base(i int) string {
	if !f.Parsed {
		return ""
	}
	if i < len(f.BaseForm) && f.BaseForm[i] != "" {
		return f.BaseForm[i]
	}
	if i < len(f.SeparatedForm) {
		return f.SeparatedForm[i]
	}
	return f.SurfaceForm
}

// Morpheme is a form claimed at a concrete range of one subtitle.
type Morpheme struct {
	Text     string         `json:"text"`
	Position int            `json:"position"`
	Length   int            `json:"length"`
	Parsed   bool           `json:"parsed"`
	Compound bool           `json:"compound"`
	Parts    []MorphemePart `json:"parts"`
}

// End returns the exclusive end offset.
func (m Morpheme) End() int {
	return m.Position + m.Length
}

// MorphemePart is one component of a claimed morpheme.
// Non-compound morphemes have exactly one part covering the whole range.
type MorphemePart struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
	Length   int    `json:"length"`
	BaseForm string `json:"base_form,omitempty"`
	Parsed   bool   `json:"parsed"`
}

// End returns the exclusive end offset.
func (p MorphemePart) End() int {
	return p.Position + p.Length
}
