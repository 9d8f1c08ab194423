package geometry

// Boxes is the page box set. The Has* flags record whether a box was present
// in the source page or derived through a fallback.
type Boxes struct {
	Media Rect
	Bleed Rect
	Trim  Rect
	Crop  Rect

	HasBleed bool
	HasTrim  bool
	HasCrop  bool
}

// Normalize fills absent boxes: TrimBox falls back to MediaBox, BleedBox to
// the trim reference and CropBox to MediaBox.
func (b Boxes) Normalize() Boxes {
	if !b.HasTrim || b.Trim.Empty() {
		b.Trim = b.Media
		b.HasTrim = false
	}
	if !b.HasBleed || b.Bleed.Empty() {
		b.Bleed = b.Trim
		b.HasBleed = false
	}
	if !b.HasCrop || b.Crop.Empty() {
		b.Crop = b.Media
		b.HasCrop = false
	}
	return b
}

// Check validates each box and the containment chain
// MediaBox ⊇ BleedBox ⊇ TrimBox and CropBox ⊇ TrimBox.
func (b Boxes) Check(tol float64) error {
	for _, nb := range []struct {
		name string
		r    Rect
	}{{"MediaBox", b.Media}, {"BleedBox", b.Bleed}, {"TrimBox", b.Trim}, {"CropBox", b.Crop}} {
		if err := nb.r.Validate(); err != nil {
			ge := err.(*Error)
			ge.Box = nb.name
			return ge
		}
	}
	if !Contains(b.Media, b.Bleed, tol) {
		return &Error{Box: "BleedBox", Rect: b.Bleed, Msg: "not inside MediaBox " + b.Media.String()}
	}
	if !Contains(b.Bleed, b.Trim, tol) {
		return &Error{Box: "TrimBox", Rect: b.Trim, Msg: "not inside BleedBox " + b.Bleed.String()}
	}
	if !Contains(b.Crop, b.Trim, tol) {
		return &Error{Box: "TrimBox", Rect: b.Trim, Msg: "not inside CropBox " + b.Crop.String()}
	}
	return nil
}
