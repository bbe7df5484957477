package keypoint

import "fmt"

// View selects one camera of the stereo rig.
type View int

const (
	Left View = iota
	Right
)

// Views lists both views in persistence order.
var Views = [2]View{Left, Right}

func (v View) String() string {
	switch v {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

// Kind tags the variant held by a Record.
type Kind uint8

const (
	// KindHidden marks a landmark as not visible in the view. It carries no coordinates.
	KindHidden Kind = iota
	// KindManual is a point placed by the annotator.
	KindManual
	// KindInterpolated is a point reconstructed from surrounding anchors.
	KindInterpolated
)

func (k Kind) String() string {
	switch k {
	case KindHidden:
		return "hidden"
	case KindManual:
		return "manual"
	case KindInterpolated:
		return "interpolated"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record is the state of one landmark in one view of one frame.
// U and V are pixel coordinates and are meaningful only when Visible.
type Record struct {
	Kind Kind
	U, V int
}

// Manual returns a visible record placed by hand.
func Manual(u, v int) Record {
	return Record{Kind: KindManual, U: u, V: v}
}

// Interpolated returns a visible record produced by curve fitting.
func Interpolated(u, v int) Record {
	return Record{Kind: KindInterpolated, U: u, V: v}
}

// Hidden returns the not-visible record.
func Hidden() Record {
	return Record{Kind: KindHidden}
}

// Visible reports whether the landmark is marked visible.
func (r Record) Visible() bool { return r.Kind != KindHidden }

// IsInterp reports whether the record came from interpolation.
func (r Record) IsInterp() bool { return r.Kind == KindInterpolated }

func (r Record) String() string {
	if !r.Visible() {
		return "hidden"
	}
	return fmt.Sprintf("%s(%d,%d)", r.Kind, r.U, r.V)
}

// Pair is the left and right record of one landmark.
type Pair struct {
	Left, Right Record
}

// Get returns the record for the given view.
func (p Pair) Get(v View) Record {
	if v == Right {
		return p.Right
	}
	return p.Left
}

// Visible reports whether both sides are visible.
func (p Pair) Visible() bool { return p.Left.Visible() && p.Right.Visible() }

// Hidden reports whether both sides are hidden.
func (p Pair) Hidden() bool { return !p.Left.Visible() && !p.Right.Visible() }

// IsAnchor reports whether the pair can seed interpolation: both sides
// visible and neither interpolated.
func (p Pair) IsAnchor() bool {
	return p.Visible() && !p.Left.IsInterp() && !p.Right.IsInterp()
}
